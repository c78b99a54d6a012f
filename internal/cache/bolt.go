// Package cache - локальное хранилище инцидентов на BoltDB.
//
// Кеш не является источником истины: его можно удалить целиком и
// восстановить из удаленного хранилища. Пишет в него только координатор
// синхронизации. Каждая запись заменяется целиком в отдельной транзакции,
// поэтому читатель никогда не увидит частично обновленный инцидент.
package cache

import (
	"fmt"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

const bucketName = "incidents"

// Store - кеш инцидентов поверх файла BoltDB
type Store struct {
	db *bolt.DB
}

// Open открывает (или создает) файл кеша и бакет инцидентов
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close освобождает блокировку файла
func (s *Store) Close() error {
	return s.db.Close()
}

// Put сохраняет инцидент; повторная запись того же id перезаписывает его
func (s *Store) Put(incident *models.Incident) error {
	data, err := encodeIncident(incident)
	if err != nil {
		return fmt.Errorf("failed to encode incident %s: %w", incident.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(incident.ID), data)
	})
}

// Get возвращает инцидент или models.ErrNotFound
func (s *Store) Get(id string) (*models.Incident, error) {
	var incident *models.Incident
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if v == nil {
			return models.ErrNotFound
		}
		var err error
		incident, err = decodeIncident(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return incident, nil
}

// Delete удаляет инцидент; отсутствие записи не считается ошибкой
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
}

// Query возвращает инциденты, удовлетворяющие предикату (nil - все),
// от новых к старым, при равенстве времени - по id.
func (s *Store) Query(predicate func(*models.Incident) bool) ([]*models.Incident, error) {
	items := make([]*models.Incident, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			incident, err := decodeIncident(v)
			if err != nil {
				return fmt.Errorf("failed to decode cached incident %s: %w", k, err)
			}
			if predicate == nil || predicate(incident) {
				items = append(items, incident)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp != items[j].Timestamp {
			return items[i].Timestamp > items[j].Timestamp
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Clear удаляет все записи
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Reconcile приводит подмножество кеша, выбранное предикатом, к снимку:
// записи снимка сохраняются, записи подмножества вне снимка удаляются.
// Возвращает число удаленных записей.
func (s *Store) Reconcile(predicate func(*models.Incident) bool, snapshot []*models.Incident) (int, error) {
	keep := make(map[string]struct{}, len(snapshot))
	encoded := make(map[string][]byte, len(snapshot))
	for _, incident := range snapshot {
		data, err := encodeIncident(incident)
		if err != nil {
			return 0, fmt.Errorf("failed to encode incident %s: %w", incident.ID, err)
		}
		keep[incident.ID] = struct{}{}
		encoded[incident.ID] = data
	}

	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if _, ok := keep[string(k)]; ok {
				return nil
			}
			incident, err := decodeIncident(v)
			if err != nil || predicate == nil || predicate(incident) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Удалять во время ForEach нельзя
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)

		for id, data := range encoded {
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile cache: %w", err)
	}
	return removed, nil
}
