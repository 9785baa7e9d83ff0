package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/skip2/go-qrcode"
)

// Mailer emails the shop admin when an order lands. The mail carries a QR
// code pointing at the order's admin page so warehouse staff can pull it up
// on a phone.
type Mailer struct {
	cfg         config.EmailConfig
	frontendURL string
	log         *logger.Logger

	// send is swappable in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg config.EmailConfig, frontendURL string, log *logger.Logger) *Mailer {
	return &Mailer{
		cfg:         cfg,
		frontendURL: frontendURL,
		log:         log,
		send:        smtp.SendMail,
	}
}

// OrderPlaced sends the new-order notification. Missing admin configuration
// disables the notification rather than failing checkout.
func (m *Mailer) OrderPlaced(order *models.Order) error {
	if m.cfg.AdminEmail == "" || m.cfg.SMTPHost == "" {
		m.log.Warn("EMAIL", "Admin notification skipped: SMTP not configured")
		return nil
	}

	adminURL := fmt.Sprintf("%s/admin/orders/%d", m.frontendURL, order.ID)
	png, err := qrcode.Encode(adminURL, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("generate QR code: %w", err)
	}

	msg := m.buildMessage(order, adminURL, png)
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)

	if err := m.send(addr, auth, m.cfg.SMTPUsername, []string{m.cfg.AdminEmail}, msg); err != nil {
		return fmt.Errorf("send admin notification: %w", err)
	}

	m.log.Info("EMAIL", fmt.Sprintf("Admin notified about order %d", order.ID))
	return nil
}

func (m *Mailer) buildMessage(order *models.Order, adminURL string, qrPNG []byte) []byte {
	const boundary = "storefront-order-mail"

	var itemLines strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&itemLines, "  - %s x%d @ %.2f\r\n", item.ProductName, item.Quantity, item.UnitPrice)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.SMTPUsername)
	fmt.Fprintf(&buf, "To: %s\r\n", m.cfg.AdminEmail)
	fmt.Fprintf(&buf, "Subject: New order #%d (%s)\r\n", order.ID, order.PaymentMethod)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "Order #%d placed by %s (%s)\r\n\r\n", order.ID, order.CustomerName, order.CustomerPhone)
	buf.WriteString(itemLines.String())
	fmt.Fprintf(&buf, "\r\nTotal: %.2f (discount %.2f)\r\n", order.TotalAmount, order.DiscountAmount)
	fmt.Fprintf(&buf, "Ship to: %s\r\n\r\n", order.ShippingAddress)
	fmt.Fprintf(&buf, "Manage: %s\r\n", adminURL)

	fmt.Fprintf(&buf, "\r\n--%s\r\n", boundary)
	buf.WriteString("Content-Type: image/png\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=\"order-%d.png\"\r\n\r\n", order.ID)

	encoded := base64.StdEncoding.EncodeToString(qrPNG)
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded + "\r\n")
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}
