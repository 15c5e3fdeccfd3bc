package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/announce-service/internal/domain"
)

// Collection names used by the Mongo backend.
const (
	TicketsCollection = "tickets"
	ChatsCollection   = "chats"
	UsersCollection   = "users"
	APIKeysCollection = "api_keys"
)

// EnsureMongoIndexes creates the unique keys and query indexes the Mongo
// repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		TicketsCollection: {
			{Keys: bson.D{{Key: "ticket_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ChatsCollection: {
			{Keys: bson.D{{Key: "chat_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "active", Value: 1}}},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique},
		},
		APIKeysCollection: {
			{Keys: bson.D{{Key: "api_key", Value: 1}}, Options: unique},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}

type mongoTicketRepository struct {
	tickets *mongo.Collection
}

// NewMongoTicketRepository returns a Mongo-backed implementation.
func NewMongoTicketRepository(db *mongo.Database) TicketRepository {
	return &mongoTicketRepository{tickets: db.Collection(TicketsCollection)}
}

func (r *mongoTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	doc, err := toTicketDocument(ticket)
	if err != nil {
		return err
	}
	if _, err := r.tickets.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var doc ticketDocument
	if err := r.tickets.FindOne(ctx, bson.M{"ticket_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

func (r *mongoTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query := bson.M{}
	if filter.CreatorID != nil {
		query["creator_id"] = *filter.CreatorID
	}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}
	if filter.Action != nil {
		query["action"] = string(*filter.Action)
	}
	if rng := timeRange(filter.CreatedFrom, filter.CreatedTo); rng != nil {
		query["created_at"] = rng
	}
	if rng := timeRange(filter.StatusChangedFrom, filter.StatusChangedTo); rng != nil {
		query["status_changed_at"] = rng
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cursor, err := r.tickets.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []ticketDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
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

func (r *mongoTicketRepository) UpdateIfStatus(ctx context.Context, id string, expected domain.TicketStatus, patch domain.TicketPatch) (*domain.Ticket, error) {
	set := bson.M{}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.ApproverID != nil {
		set["approver_id"] = *patch.ApproverID
	}
	if patch.ApproverName != nil {
		set["approver_name"] = *patch.ApproverName
	}
	if patch.StatusChangedAt != nil {
		set["status_changed_at"] = *patch.StatusChangedAt
	}
	if patch.Outcome != nil {
		set["success_chats"] = nonNilDocs(destinationDocuments(patch.Outcome.Succeeded))
		set["failed_chats"] = nonNilDocs(failedDocuments(patch.Outcome.Failed))
	}
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	update := bson.M{"$max": bson.M{"updated_at": updatedAt}}
	if len(set) > 0 {
		update["$set"] = set
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc ticketDocument
	err := r.tickets.FindOneAndUpdate(ctx, bson.M{"ticket_id": id, "status": string(expected)}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		count, err := r.tickets.CountDocuments(ctx, bson.M{"ticket_id": id})
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrStatusMismatch
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (r *mongoTicketRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.tickets.DeleteOne(ctx, bson.M{"ticket_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func timeRange(from, to *time.Time) bson.M {
	if from == nil && to == nil {
		return nil
	}
	rng := bson.M{}
	if from != nil {
		rng["$gte"] = *from
	}
	if to != nil {
		rng["$lt"] = *to
	}
	return rng
}

type mongoChatRepository struct {
	chats *mongo.Collection
}

// NewMongoChatRepository returns a Mongo-backed implementation.
func NewMongoChatRepository(db *mongo.Database) ChatRepository {
	return &mongoChatRepository{chats: db.Collection(ChatsCollection)}
}

func (r *mongoChatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	if _, err := r.chats.InsertOne(ctx, toChatDocument(chat)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoChatRepository) GetByID(ctx context.Context, chatID int64) (*domain.Chat, error) {
	var doc chatDocument
	if err := r.chats.FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	chat := doc.toDomain()
	return &chat, nil
}

func (r *mongoChatRepository) List(ctx context.Context, filter ChatFilter) ([]domain.Chat, error) {
	query := bson.M{}
	if len(filter.ChatIDs) > 0 {
		query["chat_id"] = bson.M{"$in": filter.ChatIDs}
	}
	if len(filter.Names) > 0 {
		query["name"] = bson.M{"$in": filter.Names}
	}
	if filter.Type != nil {
		query["type"] = string(*filter.Type)
	}
	if len(filter.Categories) > 0 {
		query["category"] = bson.M{"$in": filter.Categories}
	}
	if len(filter.Languages) > 0 {
		query["language"] = bson.M{"$in": filter.Languages}
	}
	if len(filter.Labels) > 0 {
		query["label"] = bson.M{"$in": filter.Labels}
	}
	if filter.Active != nil {
		query["active"] = *filter.Active
	}

	opts := options.Find().SetSort(bson.D{{Key: "chat_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cursor, err := r.chats.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []chatDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]domain.Chat, 0, len(docs))
	for _, doc := range docs {
		result = append(result, doc.toDomain())
	}
	return result, nil
}

func (r *mongoChatRepository) Update(ctx context.Context, chatID int64, patch domain.ChatPatch) (*domain.Chat, error) {
	set := bson.M{"updated_at": time.Now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Type != nil {
		set["type"] = string(*patch.Type)
	}
	if patch.Category != nil {
		set["category"] = nonNil(*patch.Category)
	}
	if patch.Language != nil {
		set["language"] = nonNil(*patch.Language)
	}
	if patch.Label != nil {
		set["label"] = nonNil(*patch.Label)
	}
	if patch.Active != nil {
		set["active"] = *patch.Active
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc chatDocument
	if err := r.chats.FindOneAndUpdate(ctx, bson.M{"chat_id": chatID}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	chat := doc.toDomain()
	return &chat, nil
}

func (r *mongoChatRepository) Delete(ctx context.Context, chatID int64) (bool, error) {
	res, err := r.chats.DeleteOne(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

type mongoUserRepository struct {
	users *mongo.Collection
}

// NewMongoUserRepository returns a Mongo-backed implementation.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{users: db.Collection(UsersCollection)}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, err := r.users.InsertOne(ctx, toUserDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user := doc.toDomain()
	return &user, nil
}

func (r *mongoUserRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	query := bson.M{}
	if len(filter.UserIDs) > 0 {
		query["user_id"] = bson.M{"$in": filter.UserIDs}
	}
	if filter.Name != nil {
		query["name"] = *filter.Name
	}
	if filter.Admin != nil {
		query["admin"] = *filter.Admin
	}
	if filter.Whitelist != nil {
		query["whitelist"] = *filter.Whitelist
	}

	opts := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cursor, err := r.users.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		result = append(result, doc.toDomain())
	}
	return result, nil
}

func (r *mongoUserRepository) Update(ctx context.Context, userID int64, patch domain.UserPatch) (*domain.User, error) {
	set := bson.M{"updated_at": time.Now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Admin != nil {
		set["admin"] = *patch.Admin
	}
	if patch.Whitelist != nil {
		set["whitelist"] = *patch.Whitelist
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err := r.users.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user := doc.toDomain()
	return &user, nil
}

func (r *mongoUserRepository) Delete(ctx context.Context, userID int64) (bool, error) {
	res, err := r.users.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

type mongoAPIKeyRepository struct {
	keys *mongo.Collection
}

// NewMongoAPIKeyRepository returns a Mongo-backed implementation.
func NewMongoAPIKeyRepository(db *mongo.Database) APIKeyRepository {
	return &mongoAPIKeyRepository{keys: db.Collection(APIKeysCollection)}
}

func (r *mongoAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	if _, err := r.keys.InsertOne(ctx, toAPIKeyDocument(key)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoAPIKeyRepository) GetByKey(ctx context.Context, key string) (*domain.APIKey, error) {
	var doc apiKeyDocument
	if err := r.keys.FindOne(ctx, bson.M{"api_key": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	k := doc.toDomain()
	return &k, nil
}

func (r *mongoAPIKeyRepository) List(ctx context.Context) ([]domain.APIKey, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.keys.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []apiKeyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]domain.APIKey, 0, len(docs))
	for _, doc := range docs {
		result = append(result, doc.toDomain())
	}
	return result, nil
}

func (r *mongoAPIKeyRepository) Delete(ctx context.Context, key string) (bool, error) {
	res, err := r.keys.DeleteOne(ctx, bson.M{"api_key": key})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
