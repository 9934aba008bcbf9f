// Package webhook parses and authenticates payment-status notifications
// pushed by the payment gateway.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/airsettle/internal/domain"
)

const (
	TransactionAuthorize = "AUTHORIZE"
	TransactionFailed    = "FAILED"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrInvalidSignature = errors.New("invalid signature")
)

type Payload struct {
	Event json.RawMessage `json:"Event"`
	Data  *Data           `json:"Data"`
}

type Data struct {
	Invoice     *Invoice     `json:"Invoice"`
	Transaction *Transaction `json:"Transaction"`
}

type Invoice struct {
	ID                 domain.FlexString `json:"Id"`
	Status             domain.FlexString `json:"Status"`
	ExternalIdentifier domain.FlexString `json:"ExternalIdentifier"`
}

type Transaction struct {
	Status    domain.FlexString `json:"Status"`
	PaymentID domain.FlexString `json:"PaymentId"`
}

// Notification is an authenticated webhook reduced to what the settlement
// flow acts on.
type Notification struct {
	InvoiceID         string
	InvoiceStatus     string
	TransactionStatus string
	PaymentID         string
	Event             string
}

// Parse decodes body and checks the Invoice and Transaction blocks exist.
func Parse(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Data == nil || p.Data.Invoice == nil || p.Data.Transaction == nil {
		return nil, ErrInvalidPayload
	}
	return &p, nil
}

// CanonicalString is the signed message: five Key=Value pairs joined by
// commas, in the gateway's fixed order.
func (p *Payload) CanonicalString() string {
	inv, tx := p.Data.Invoice, p.Data.Transaction
	fields := []string{
		"Invoice.Id=" + inv.ID.String(),
		"Invoice.Status=" + inv.Status.String(),
		"Transaction.Status=" + tx.Status.String(),
		"Transaction.PaymentId=" + tx.PaymentID.String(),
		"Invoice.ExternalIdentifier=" + inv.ExternalIdentifier.String(),
	}
	return strings.Join(fields, ",")
}

func (p *Payload) Notification() Notification {
	n := Notification{
		InvoiceID:         p.Data.Invoice.ID.String(),
		InvoiceStatus:     p.Data.Invoice.Status.String(),
		TransactionStatus: p.Data.Transaction.Status.String(),
		PaymentID:         p.Data.Transaction.PaymentID.String(),
	}
	if len(p.Event) > 0 {
		var name string
		if err := json.Unmarshal(p.Event, &name); err == nil {
			n.Event = name
		} else {
			var ev struct {
				Name string `json:"Name"`
			}
			if err := json.Unmarshal(p.Event, &ev); err == nil {
				n.Event = ev.Name
			}
		}
	}
	return n
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns base64(HMAC-SHA256(secret, message)).
func (v *Verifier) Sign(message string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify authenticates signature against the payload's canonical string.
// The comparison is constant time.
func (v *Verifier) Verify(p *Payload, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	expected := v.Sign(p.CanonicalString())
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
