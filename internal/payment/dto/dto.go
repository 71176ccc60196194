package dto

import "time"

type PaymentQRResult struct {
	QRURL     string    `json:"qr_url"` // PNG data URL rendered from the gateway payload
	QRData    string    `json:"qr_data"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RefreshResult struct {
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}
