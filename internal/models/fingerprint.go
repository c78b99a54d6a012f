package models

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// Fingerprint возвращает blake3-отпечаток упорядоченного набора инцидентов.
// Одинаковое содержимое в одинаковом порядке дает одинаковый отпечаток.
func Fingerprint(incidents []*Incident) string {
	h := blake3.New()
	enc := json.NewEncoder(h)
	for _, inc := range incidents {
		// Encode в hash.Hash не возвращает ошибок записи; ошибка возможна только для
		// некодируемых значений, которых в Incident нет.
		_ = enc.Encode(inc)
	}
	return hex.EncodeToString(h.Sum(nil))
}
