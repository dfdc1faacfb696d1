package types

import (
	"fmt"
	"time"
)

// TimestampLayout is the wire format of Transaction.Timestamp: UTC, second precision.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Transaction is one generated transaction event. Field names are the wire
// names consumed by downstream fraud-detection pipelines.
type Transaction struct {
	TransactionID     string  `json:"TransactionID"`
	CardID            string  `json:"CardID"`
	Timestamp         string  `json:"Timestamp"`
	Amount            float64 `json:"Amount"`
	MerchantID        string  `json:"MerchantID"`
	MerchantLatitude  float64 `json:"MerchantLatitude"`
	MerchantLongitude float64 `json:"MerchantLongitude"`
	IsFraud           bool    `json:"IsFraud"`
	HomeLatitude      float64 `json:"HomeLatitude"`
	HomeLongitude     float64 `json:"HomeLongitude"`
}

// FormatTimestamp renders t in TimestampLayout. Sub-second precision is truncated.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a Transaction.Timestamp value.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// MerchantID formats a merchant identifier from its numeric code.
func MerchantID(code int) string {
	return fmt.Sprintf("MERCHANT_%d", code)
}
