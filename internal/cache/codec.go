package cache

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

// encMode - детерминированное кодирование CBOR: одна и та же запись
// всегда дает одинаковые байты.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
	// Неизвестные поля игнорируются: кеш переживает добавление полей в схему.
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeIncident(incident *models.Incident) ([]byte, error) {
	return encMode.Marshal(incident)
}

func decodeIncident(data []byte) (*models.Incident, error) {
	incident := &models.Incident{}
	if err := decMode.Unmarshal(data, incident); err != nil {
		return nil, err
	}
	return incident, nil
}
