package voucher

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/skip2/go-qrcode"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/models"
)

const size = 256

// Generator renders booking vouchers as QR codes. The payload is signed so a
// guide scanning it can tell a forged voucher from a real one.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret))
	return &Generator{secret: hashed[:]}
}

// Payload is "<bookingId>.<tourId>.<status>.<signature>".
func (g *Generator) Payload(b *models.Booking) string {
	body := strings.Join([]string{b.ID, b.TourID, string(b.PaymentStatus)}, ".")
	return body + "." + g.sign(body)
}

func (g *Generator) Verify(payload string) (bookingID string, ok bool) {
	i := strings.LastIndex(payload, ".")
	if i < 0 {
		return "", false
	}
	body, sig := payload[:i], payload[i+1:]
	if !hmac.Equal([]byte(sig), []byte(g.sign(body))) {
		return "", false
	}
	return strings.SplitN(body, ".", 2)[0], true
}

// PNG renders the voucher. Only fully paid bookings get one.
func (g *Generator) PNG(b *models.Booking) ([]byte, error) {
	if b.PaymentStatus != models.BookingConfirmed {
		return nil, apperror.InvalidState("booking %s is %s, vouchers are issued for confirmed bookings", b.ID, b.PaymentStatus)
	}
	return qrcode.Encode(g.Payload(b), qrcode.Medium, size)
}

func (g *Generator) sign(body string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
