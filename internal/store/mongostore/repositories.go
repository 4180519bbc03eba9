package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/adb-analytics/apiserver/internal/store"
	"github.com/adb-analytics/apiserver/types"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	var user types.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, store.ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, store.ErrDuplicate
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"passwordHash": passwordHash, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

type ProjectRepository struct {
	coll *mongo.Collection
}

func NewProjectRepository(db *mongo.Database) *ProjectRepository {
	return &ProjectRepository{coll: db.Collection(projectsCollection)}
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]types.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	projects := make([]types.Project, 0)
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now().UTC()
	project.ID = uuid.NewString()
	project.CreatedAt = now
	project.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, project); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

type PasswordResetRepository struct {
	coll  *mongo.Collection
	users *UserRepository
}

func NewPasswordResetRepository(db *mongo.Database) *PasswordResetRepository {
	return &PasswordResetRepository{coll: db.Collection(resetsCollection), users: NewUserRepository(db)}
}

func (r *PasswordResetRepository) Create(ctx context.Context, reset types.PasswordReset) error {
	reset.CreatedAt = time.Now().UTC()
	if _, err := r.coll.InsertOne(ctx, reset); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *PasswordResetRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (types.PasswordReset, error) {
	filter := bson.M{
		"_id":       tokenHash,
		"usedAt":    bson.M{"$exists": false},
		"expiresAt": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"usedAt": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var reset types.PasswordReset
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&reset); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.PasswordReset{}, store.ErrNotFound
		}
		return types.PasswordReset{}, err
	}
	return reset, nil
}

// Redeem consumes the reset and sets the user's password. A standalone
// server has no multi-document transactions, so a failed password write
// marks the reset unused again.
func (r *PasswordResetRepository) Redeem(ctx context.Context, tokenHash string, now time.Time, passwordHash string) error {
	reset, err := r.Consume(ctx, tokenHash, now)
	if err != nil {
		return err
	}
	if err := r.users.UpdatePassword(ctx, reset.UserID, passwordHash); err != nil {
		if _, restoreErr := r.coll.UpdateOne(ctx,
			bson.M{"_id": tokenHash},
			bson.M{"$unset": bson.M{"usedAt": ""}},
		); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	return nil
}
