package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

// CountUsers returns the number of users with role, or all users if role is empty.
func (db *DB) CountUsers(ctx context.Context, role models.Role) (int64, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = string(role)
	}
	n, err := db.Users().CountDocuments(ctx, filter)
	return n, classify(err)
}

func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.findUser(ctx, bson.M{"email": email}, email)
}

func (db *DB) UserByID(ctx context.Context, id string) (*models.User, error) {
	return db.findUser(ctx, bson.M{"_id": id}, id)
}

func (db *DB) findUser(ctx context.Context, filter bson.M, key string) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, circulation.NotFound(circulation.ErrUserNotFound, key)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

func (db *DB) InsertUser(ctx context.Context, user *models.User) error {
	_, err := db.Users().InsertOne(ctx, user, options.InsertOne())
	if mongo.IsDuplicateKeyError(err) {
		return circulation.Conflict(circulation.ErrEmailTaken, user.Email)
	}
	return classify(err)
}

func (db *DB) ListUsers(ctx context.Context, branchID string) ([]models.User, error) {
	filter := bson.M{}
	if branchID != "" {
		filter["branchId"] = branchID
	}
	cur, err := db.Users().Find(ctx, filter, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, classify(err)
	}
	return users, nil
}

func (db *DB) SetUserRole(ctx context.Context, id string, role models.Role) error {
	return db.updateUser(ctx, id, bson.M{"role": string(role)})
}

// adminGuard is written by every demotion so that two concurrent demotions
// hit a write conflict and the driver retries one of them.
const adminGuard = "admins"

func (db *DB) DemoteAdmin(ctx context.Context, id string, role models.Role) error {
	return db.inTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := db.Locks().UpdateOne(sc,
			bson.M{"_id": adminGuard},
			bson.M{"$inc": bson.M{"seq": 1}},
			options.Update().SetUpsert(true),
		); err != nil {
			return err
		}
		admins, err := db.Users().CountDocuments(sc, bson.M{"role": string(models.RoleAdmin), "_id": bson.M{"$ne": id}})
		if err != nil {
			return err
		}
		if admins == 0 {
			return circulation.Conflict(circulation.ErrLastAdmin, id)
		}
		res, err := db.Users().UpdateOne(sc, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": string(role)}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return circulation.NotFound(circulation.ErrUserNotFound, id)
		}
		return nil
	})
}

func (db *DB) SetUserActive(ctx context.Context, id string, active bool) error {
	return db.updateUser(ctx, id, bson.M{"isActive": active})
}

func (db *DB) updateUser(ctx context.Context, id string, set bson.M) error {
	res, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return classify(err)
	}
	if res.MatchedCount == 0 {
		return circulation.NotFound(circulation.ErrUserNotFound, id)
	}
	return nil
}
