package utils

import (
	"fmt"
	"log"
	"os"

	"velora_back_end/internal/models"

	"github.com/wneessen/go-mail"
)

// SendConfirmationEmail envoie un e-mail HTML via le SMTP configuré.
func SendConfirmationEmail(to, subject, htmlBody string) error {
	msg := mail.NewMsg()

	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "noreply@velora.shop"
	}
	if err := msg.From(from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(os.Getenv("SMTP_HOST"),
		mail.WithPort(587),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(os.Getenv("SMTP_USERNAME")),
		mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail à", to)
	return client.DialAndSend(msg)
}

// GenerateOrderConfirmationHTML génère le HTML de confirmation de
// commande, avec un QR de suivi si disponible.
func GenerateOrderConfirmationHTML(order models.Order, trackingQR string) string {
	itemsHTML := ""
	for _, item := range order.Items {
		itemsHTML += fmt.Sprintf(`
			<tr>
				<td style="padding: 8px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">%.2f€</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">%.2f€</td>
			</tr>`, item.Name, item.Quantity, item.Price, item.Price*float64(item.Quantity))
	}

	qrHTML := ""
	if trackingQR != "" {
		qrHTML = fmt.Sprintf(`
			<div style="text-align: center; margin: 20px 0;">
				<p style="color: #666;">Scannez pour suivre votre commande :</p>
				<img src="%s" alt="QR de suivi" width="160" height="160" />
			</div>`, trackingQR)
	}

	shortID := order.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Confirmation de commande</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Merci pour votre commande !</h2>
		<p>Bonjour,</p>
		<p>Votre paiement a bien été reçu. Votre commande <strong>#%s</strong> est en préparation.</p>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<tr>
				<th style="padding: 8px; text-align: left; border-bottom: 2px solid #333;">Article</th>
				<th style="padding: 8px; text-align: center; border-bottom: 2px solid #333;">Qté</th>
				<th style="padding: 8px; text-align: right; border-bottom: 2px solid #333;">Prix</th>
				<th style="padding: 8px; text-align: right; border-bottom: 2px solid #333;">Total</th>
			</tr>
			%s
		</table>
		<p style="text-align: right; font-size: 18px;"><strong>Total : %.2f€</strong></p>
		%s
		<p style="color: #999; font-size: 12px; margin-top: 30px;">
			Cet e-mail a été envoyé automatiquement, merci de ne pas y répondre.<br/>
			© Velora — Tous droits réservés
		</p>
	</div>
</body>
</html>
`, shortID, itemsHTML, order.Total, qrHTML)
}
