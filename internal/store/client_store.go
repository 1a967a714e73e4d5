package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type DuplicateClientIdError struct {
	Id uuid.UUID
}

func (e *DuplicateClientIdError) Error() string {
	return fmt.Sprintf("Attempted to register client with duplicate ID %s", e.Id)
}

type MissingClientIdError struct {
	Id uuid.UUID
}

func (e *MissingClientIdError) Error() string {
	return fmt.Sprintf("Missing client with id=%s", e.Id)
}

type TooManyClientsError struct {
	MaxConnections int
}

func (e *TooManyClientsError) Error() string {
	return fmt.Sprintf("Too many clients are connected (max %d) - cannot register new client", e.MaxConnections)
}

type ClientMetadata struct {
	RemoteAddr      string
	CreatedTime     time.Time
	LastMessageTime time.Time
}

// ClientStore tracks bookkeeping for the connections a Server holds. The
// server loop is the only writer, but the monitor reads it from its own
// goroutine.
type ClientStore struct {
	// Zero means unlimited
	MaxConnections int

	mut_clients sync.RWMutex
	clients     map[uuid.UUID]*ClientMetadata
}

func CreateClientStore(maxConnections int) *ClientStore {
	return &ClientStore{
		MaxConnections: maxConnections,
		mut_clients:    sync.RWMutex{},
		clients:        make(map[uuid.UUID]*ClientMetadata),
	}
}

func (store *ClientStore) HasClient(clientId uuid.UUID) bool {
	store.mut_clients.RLock()
	defer store.mut_clients.RUnlock()

	_, has := store.clients[clientId]
	return has
}

// HasCapacity reports whether one more client could be registered.
func (store *ClientStore) HasCapacity() bool {
	store.mut_clients.RLock()
	defer store.mut_clients.RUnlock()

	return store.MaxConnections <= 0 || len(store.clients) < store.MaxConnections
}

func (store *ClientStore) CreateClient(clientId uuid.UUID, remoteAddr string, now time.Time) error {
	store.mut_clients.Lock()
	defer store.mut_clients.Unlock()

	if _, has := store.clients[clientId]; has {
		return &DuplicateClientIdError{Id: clientId}
	}

	if store.MaxConnections > 0 && len(store.clients) >= store.MaxConnections {
		return &TooManyClientsError{MaxConnections: store.MaxConnections}
	}

	store.clients[clientId] = &ClientMetadata{
		RemoteAddr:      remoteAddr,
		CreatedTime:     now,
		LastMessageTime: now,
	}

	return nil
}

func (store *ClientStore) RemoveClient(clientId uuid.UUID) {
	store.mut_clients.Lock()
	defer store.mut_clients.Unlock()
	delete(store.clients, clientId)
}

func (store *ClientStore) Count() int {
	store.mut_clients.RLock()
	defer store.mut_clients.RUnlock()
	return len(store.clients)
}

func (store *ClientStore) GetClient(clientId uuid.UUID) (ClientMetadata, error) {
	store.mut_clients.RLock()
	defer store.mut_clients.RUnlock()

	client, has := store.clients[clientId]
	if !has {
		return ClientMetadata{}, &MissingClientIdError{Id: clientId}
	}
	return *client, nil
}

// SetClientRecvTimestamp only ever moves the timestamp forward.
func (store *ClientStore) SetClientRecvTimestamp(clientId uuid.UUID, timestamp time.Time) error {
	store.mut_clients.Lock()
	defer store.mut_clients.Unlock()

	client, has := store.clients[clientId]
	if !has {
		return &MissingClientIdError{Id: clientId}
	}

	if timestamp.After(client.LastMessageTime) {
		client.LastMessageTime = timestamp
	}
	return nil
}

// GetTimeoutClientList returns every client that has been silent since before
// messageDeadline.
func (store *ClientStore) GetTimeoutClientList(messageDeadline time.Time) []uuid.UUID {
	store.mut_clients.RLock()
	defer store.mut_clients.RUnlock()

	clientsToKick := []uuid.UUID{}

	for clientId, client := range store.clients {
		if client.LastMessageTime.Before(messageDeadline) {
			clientsToKick = append(clientsToKick, clientId)
		}
	}

	return clientsToKick
}

// Snapshot copies every entry so callers on other goroutines can read them freely.
func (store *ClientStore) Snapshot() map[uuid.UUID]ClientMetadata {
	store.mut_clients.RLock()
	defer store.mut_clients.RUnlock()

	snapshot := make(map[uuid.UUID]ClientMetadata, len(store.clients))
	for clientId, client := range store.clients {
		snapshot[clientId] = *client
	}
	return snapshot
}
