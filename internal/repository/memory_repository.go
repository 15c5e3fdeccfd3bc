package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/announce-service/internal/domain"
)

// MemoryTicketRepository keeps tickets in process memory. Records are stored
// in their document form so callers never share slices with the store.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]ticketDocument
}

// NewMemoryTicketRepository returns an empty in-memory ticket store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]ticketDocument)}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	doc, err := toTicketDocument(ticket)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[doc.TicketID]; exists {
		return ErrDuplicate
	}
	r.tickets[doc.TicketID] = doc
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	doc, ok := r.tickets[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return doc.toDomain()
}

func (r *MemoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	docs := make([]ticketDocument, 0, len(r.tickets))
	for _, doc := range r.tickets {
		if ticketMatches(doc, filter) {
			docs = append(docs, doc)
		}
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].TicketID > docs[j].TicketID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if filter.Limit > 0 && len(docs) > filter.Limit {
		docs = docs[:filter.Limit]
	}

	result := make([]domain.Ticket, 0, len(docs))
	for _, doc := range docs {
		ticket, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func (r *MemoryTicketRepository) UpdateIfStatus(_ context.Context, id string, expected domain.TicketStatus, patch domain.TicketPatch) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	if domain.TicketStatus(doc.Status) != expected {
		return nil, ErrStatusMismatch
	}
	ticket, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	if patch.UpdatedAt.IsZero() {
		patch.UpdatedAt = time.Now()
	}
	patch.Apply(ticket)
	updated, err := toTicketDocument(ticket)
	if err != nil {
		return nil, err
	}
	r.tickets[id] = updated
	return updated.toDomain()
}

func (r *MemoryTicketRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return false, nil
	}
	delete(r.tickets, id)
	return true, nil
}

func ticketMatches(doc ticketDocument, f TicketFilter) bool {
	if f.CreatorID != nil && doc.CreatorID != *f.CreatorID {
		return false
	}
	if f.Status != nil && doc.Status != string(*f.Status) {
		return false
	}
	if f.Action != nil && doc.Action != string(*f.Action) {
		return false
	}
	if !inRange(&doc.CreatedAt, f.CreatedFrom, f.CreatedTo) {
		return false
	}
	if (f.StatusChangedFrom != nil || f.StatusChangedTo != nil) && !inRange(doc.StatusChangedAt, f.StatusChangedFrom, f.StatusChangedTo) {
		return false
	}
	return true
}

func inRange(at, from, to *time.Time) bool {
	if at == nil {
		return false
	}
	if from != nil && at.Before(*from) {
		return false
	}
	if to != nil && !at.Before(*to) {
		return false
	}
	return true
}

// MemoryChatRepository keeps chats in process memory.
type MemoryChatRepository struct {
	mu    sync.RWMutex
	chats map[int64]chatDocument
}

// NewMemoryChatRepository returns an empty in-memory chat store.
func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{chats: make(map[int64]chatDocument)}
}

func (r *MemoryChatRepository) Create(_ context.Context, chat *domain.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.chats[chat.ChatID]; exists {
		return ErrDuplicate
	}
	r.chats[chat.ChatID] = toChatDocument(chat)
	return nil
}

func (r *MemoryChatRepository) GetByID(_ context.Context, chatID int64) (*domain.Chat, error) {
	r.mu.RLock()
	doc, ok := r.chats[chatID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	chat := doc.toDomain()
	return &chat, nil
}

func (r *MemoryChatRepository) List(_ context.Context, filter ChatFilter) ([]domain.Chat, error) {
	r.mu.RLock()
	result := []domain.Chat{}
	for _, doc := range r.chats {
		if chatMatches(doc, filter) {
			result = append(result, doc.toDomain())
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ChatID < result[j].ChatID })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *MemoryChatRepository) Update(_ context.Context, chatID int64, patch domain.ChatPatch) (*domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	chat := doc.toDomain()
	patch.Apply(&chat)
	chat.UpdatedAt = time.Now()
	r.chats[chatID] = toChatDocument(&chat)
	return &chat, nil
}

func (r *MemoryChatRepository) Delete(_ context.Context, chatID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[chatID]; !ok {
		return false, nil
	}
	delete(r.chats, chatID)
	return true, nil
}

func chatMatches(doc chatDocument, f ChatFilter) bool {
	if len(f.ChatIDs) > 0 && !containsInt64(f.ChatIDs, doc.ChatID) {
		return false
	}
	if len(f.Names) > 0 && !containsString(f.Names, doc.Name) {
		return false
	}
	if f.Type != nil && doc.Type != string(*f.Type) {
		return false
	}
	if len(f.Categories) > 0 && !overlaps(doc.Category, f.Categories) {
		return false
	}
	if len(f.Languages) > 0 && !overlaps(doc.Language, f.Languages) {
		return false
	}
	if len(f.Labels) > 0 && !overlaps(doc.Label, f.Labels) {
		return false
	}
	if f.Active != nil && doc.Active != *f.Active {
		return false
	}
	return true
}

// MemoryUserRepository keeps users in process memory.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]userDocument
}

// NewMemoryUserRepository returns an empty in-memory user store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int64]userDocument)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.UserID]; exists {
		return ErrDuplicate
	}
	r.users[user.UserID] = toUserDocument(user)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, userID int64) (*domain.User, error) {
	r.mu.RLock()
	doc, ok := r.users[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	user := doc.toDomain()
	return &user, nil
}

func (r *MemoryUserRepository) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	r.mu.RLock()
	result := []domain.User{}
	for _, doc := range r.users {
		if len(filter.UserIDs) > 0 && !containsInt64(filter.UserIDs, doc.UserID) {
			continue
		}
		if filter.Name != nil && doc.Name != *filter.Name {
			continue
		}
		if filter.Admin != nil && doc.Admin != *filter.Admin {
			continue
		}
		if filter.Whitelist != nil && doc.Whitelist != *filter.Whitelist {
			continue
		}
		result = append(result, doc.toDomain())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, userID int64, patch domain.UserPatch) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	user := doc.toDomain()
	patch.Apply(&user)
	user.UpdatedAt = time.Now()
	r.users[userID] = toUserDocument(&user)
	return &user, nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return false, nil
	}
	delete(r.users, userID)
	return true, nil
}

// MemoryAPIKeyRepository keeps API keys in process memory.
type MemoryAPIKeyRepository struct {
	mu   sync.RWMutex
	keys map[string]apiKeyDocument
}

// NewMemoryAPIKeyRepository returns an empty in-memory key store.
func NewMemoryAPIKeyRepository() *MemoryAPIKeyRepository {
	return &MemoryAPIKeyRepository{keys: make(map[string]apiKeyDocument)}
}

func (r *MemoryAPIKeyRepository) Create(_ context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keys[key.Key]; exists {
		return ErrDuplicate
	}
	r.keys[key.Key] = toAPIKeyDocument(key)
	return nil
}

func (r *MemoryAPIKeyRepository) GetByKey(_ context.Context, key string) (*domain.APIKey, error) {
	r.mu.RLock()
	doc, ok := r.keys[key]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	k := doc.toDomain()
	return &k, nil
}

func (r *MemoryAPIKeyRepository) List(_ context.Context) ([]domain.APIKey, error) {
	r.mu.RLock()
	result := make([]domain.APIKey, 0, len(r.keys))
	for _, doc := range r.keys {
		result = append(result, doc.toDomain())
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *MemoryAPIKeyRepository) Delete(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key]; !ok {
		return false, nil
	}
	delete(r.keys, key)
	return true, nil
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		if containsString(have, w) {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsInt64(list []int64, v int64) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
