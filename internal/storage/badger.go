package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"peerline/backend/internal/models"
)

// Key layout:
//
//	participant:{id}             participant JSON
//	room:{id}                    room JSON
//	member:{participant}:{room}  empty
//	pair:{seeker}:{helper}       id of the active room, removed on end
//	msg:{room}:{seq}             message JSON, seq zero padded so keys sort in insertion order
//	msguid:{uid}                 key of the message, makes appends idempotent
//	counter:{name}               big endian uint64
const (
	counterRooms    = "counter:rooms"
	counterMessages = "counter:messages"
)

// BadgerStore persists everything in an embedded BadgerDB. It suits a single
// node deployment that must survive restarts without running PostgreSQL.
type BadgerStore struct {
	db *badger.DB
	// serializes writes so transactions never fail with badger.ErrConflict
	mu sync.Mutex
}

// OpenBadger opens (or creates) the database at path. An empty path keeps
// the data in memory.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(fn)
}

func getJSON(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(v []byte) error {
		return json.Unmarshal(v, out)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), raw)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func increment(txn *badger.Txn, key string) (uint64, error) {
	var cur uint64
	item, err := txn.Get([]byte(key))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		if err := item.Value(func(v []byte) error {
			cur = binary.BigEndian.Uint64(v)
			return nil
		}); err != nil {
			return 0, err
		}
	}
	cur++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, cur)
	return cur, txn.Set([]byte(key), buf)
}

// scanKeys returns copies of every key under prefix.
func scanKeys(txn *badger.Txn, prefix string) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func participantKey(id string) string { return "participant:" + id }
func roomKey(id string) string { return "room:" + id }
func memberKey(participant, room string) string { return "member:" + participant + ":" + room }
func pairKey(seeker, helper string) string { return "pair:" + seeker + ":" + helper }
func messagePrefix(room string) string { return "msg:" + room + ":" }
func messageUIDKey(uid string) string { return "msguid:" + uid }

func (s *BadgerStore) SaveParticipant(ctx context.Context, p *models.Participant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, participantKey(p.ID), p)
	})
}

func (s *BadgerStore) GetParticipant(_ context.Context, id string) (*models.Participant, error) {
	var p models.Participant
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, participantKey(id), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BadgerStore) ListParticipantsByRole(_ context.Context, role models.Role) ([]models.Participant, error) {
	var all []models.Participant
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("participant:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p models.Participant
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &p) }); err != nil {
				return err
			}
			all = append(all, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := lo.Filter(all, func(p models.Participant, _ int) bool { return p.Role == role })
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *BadgerStore) NextRoomSequence(ctx context.Context) (int64, error) {
	var seq uint64
	err := s.update(ctx, func(txn *badger.Txn) error {
		var err error
		seq, err = increment(txn, counterRooms)
		return err
	})
	return int64(seq), err
}

func (s *BadgerStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		for _, key := range []string{pairKey(room.SeekerID, room.HelperID), roomKey(room.RoomID)} {
			taken, err := exists(txn, key)
			if err != nil {
				return err
			}
			if taken {
				return ErrActivePairExists
			}
		}
		if err := setJSON(txn, roomKey(room.RoomID), room); err != nil {
			return err
		}
		if err := txn.Set([]byte(pairKey(room.SeekerID, room.HelperID)), []byte(room.RoomID)); err != nil {
			return err
		}
		if err := txn.Set([]byte(memberKey(room.SeekerID, room.RoomID)), nil); err != nil {
			return err
		}
		return txn.Set([]byte(memberKey(room.HelperID, room.RoomID)), nil)
	})
}

func (s *BadgerStore) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, roomKey(roomID), &room)
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *BadgerStore) FindActiveRoom(_ context.Context, seekerID, helperID string) (*models.Room, error) {
	var room models.Room
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(pairKey(seekerID, helperID)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		roomID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, roomKey(string(roomID)), &room)
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *BadgerStore) ListActiveRoomsFor(_ context.Context, participantID string) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := "member:" + participantID + ":"
		for _, key := range scanKeys(txn, prefix) {
			var room models.Room
			if err := getJSON(txn, roomKey(string(key[len(prefix):])), &room); err != nil {
				return err
			}
			if room.IsActive() {
				rooms = append(rooms, room)
			}
		}
		return nil
	})
	return rooms, err
}

// EndRoom deletes the room's messages and then marks it ended. The purge
// goes through a WriteBatch, which commits as many transactions as the
// history needs. The status flips last, so an interrupted purge leaves the
// room active and a retry finishes it.
func (s *BadgerStore) EndRoom(ctx context.Context, roomID string, endedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var room models.Room
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, roomKey(roomID), &room); err != nil {
			return err
		}
		if !room.IsActive() {
			return ErrRoomEnded
		}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(messagePrefix(roomID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var stored storedMessage
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &stored) }); err != nil {
				return err
			}
			keys = append(keys, it.Item().KeyCopy(nil), []byte(messageUIDKey(stored.UID)))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("failed to purge room %s: %w", roomID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to purge room %s: %w", roomID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(pairKey(room.SeekerID, room.HelperID))); err != nil {
			return err
		}
		room.Status = models.RoomEnded
		room.EndedAt = &endedAt
		return setJSON(txn, roomKey(roomID), &room)
	})
}

// AppendMessage is idempotent on msg.UID.
func (s *BadgerStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		dup, err := exists(txn, messageUIDKey(msg.UID))
		if err != nil || dup {
			return err
		}
		id, err := increment(txn, counterMessages)
		if err != nil {
			return err
		}
		msg.ID = uint(id)
		key := fmt.Sprintf("%s%020d", messagePrefix(msg.RoomID), id)
		if err := setJSON(txn, key, storedMessage{Message: *msg, ID: msg.ID}); err != nil {
			return err
		}
		return txn.Set([]byte(messageUIDKey(msg.UID)), []byte(key))
	})
}

// ListMessages returns messages in insertion order.
func (s *BadgerStore) ListMessages(_ context.Context, roomID string) ([]models.Message, error) {
	history := []models.Message{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(messagePrefix(roomID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var stored storedMessage
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &stored) }); err != nil {
				return err
			}
			msg := stored.Message
			msg.ID = stored.ID
			history = append(history, msg)
		}
		return nil
	})
	return history, err
}

// storedMessage keeps the row id, which the API encoding hides.
type storedMessage struct {
	models.Message
	ID uint `json:"row_id"`
}
