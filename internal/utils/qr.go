package utils

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// GenerateTrackingQR génère un QR pointant vers la page de suivi de la
// commande, en base64 prêt à mettre dans <img src="...">.
func GenerateTrackingQR(frontendURL, orderID string) (string, error) {
	target := fmt.Sprintf("%s/orders/%s", frontendURL, orderID)
	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
