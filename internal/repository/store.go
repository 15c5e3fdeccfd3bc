package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store groups the repositories of one backend.
type Store struct {
	Tickets TicketRepository
	Chats   ChatRepository
	Users   UserRepository
	APIKeys APIKeyRepository
}

// NewPostgresStore builds repositories over a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return Store{
		Tickets: NewTicketRepository(pool),
		Chats:   NewChatRepository(pool),
		Users:   NewUserRepository(pool),
		APIKeys: NewAPIKeyRepository(pool),
	}
}

// NewMongoStore builds repositories over a Mongo database.
func NewMongoStore(db *mongo.Database) Store {
	return Store{
		Tickets: NewMongoTicketRepository(db),
		Chats:   NewMongoChatRepository(db),
		Users:   NewMongoUserRepository(db),
		APIKeys: NewMongoAPIKeyRepository(db),
	}
}

// NewMemoryStore builds process-local repositories.
func NewMemoryStore() Store {
	return Store{
		Tickets: NewMemoryTicketRepository(),
		Chats:   NewMemoryChatRepository(),
		Users:   NewMemoryUserRepository(),
		APIKeys: NewMemoryAPIKeyRepository(),
	}
}
