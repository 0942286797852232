package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"refhub/entity"
	"refhub/internal/config"
)

const (
	collectionAdmins        = "admins"
	collectionStudents      = "students"
	collectionReferralCodes = "referral_codes"
	collectionVisits        = "visits"
	collectionActivities    = "activities"
	collectionSecurityCodes = "security_codes"
)

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(ctx context.Context, connection *mongo.Client) {
	_ = connection.Disconnect(ctx)
}

func (m *MongoDB) coll(connection *mongo.Client, name string) *mongo.Collection {
	return connection.Database(m.database).Collection(name)
}

func findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.ErrNotFound
	}
	return fmt.Errorf("mongodb find: %w", err)
}

// EnsureIndexes creates the unique indexes the attribution invariants rely on.
// Safe to call on every start.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	unique := options.Index().SetUnique(true)
	_, err = m.coll(connection, collectionAdmins).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
	})
	if err != nil {
		return fmt.Errorf("admin indexes: %w", err)
	}
	_, err = m.coll(connection, collectionReferralCodes).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "code", Value: 1}}, Options: unique,
	})
	if err != nil {
		return fmt.Errorf("referral code index: %w", err)
	}
	_, err = m.coll(connection, collectionStudents).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}}, Options: unique,
	})
	if err != nil {
		return fmt.Errorf("student index: %w", err)
	}
	_, err = m.coll(connection, collectionVisits).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ip", Value: 1}, {Key: "referrer", Value: 1}, {Key: "signed_up", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("visit index: %w", err)
	}
	return nil
}

// ---- admins ----

func (m *MongoDB) CreateAdmin(ctx context.Context, admin *entity.Admin) (primitive.ObjectID, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return primitive.NilObjectID, err
	}
	defer m.disconnect(ctx, connection)

	res, err := m.coll(connection, collectionAdmins).InsertOne(ctx, admin)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

func (m *MongoDB) GetAdminById(ctx context.Context, id primitive.ObjectID) (*entity.Admin, error) {
	return m.findAdmin(ctx, bson.D{{Key: "_id", Value: id}})
}

func (m *MongoDB) GetAdminByPhone(ctx context.Context, phone string) (*entity.Admin, error) {
	return m.findAdmin(ctx, bson.D{{Key: "phone", Value: phone}})
}

func (m *MongoDB) GetAdminByUsername(ctx context.Context, username string) (*entity.Admin, error) {
	return m.findAdmin(ctx, bson.D{{Key: "username", Value: username}})
}

func (m *MongoDB) findAdmin(ctx context.Context, filter bson.D) (*entity.Admin, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	var admin entity.Admin
	err = m.coll(connection, collectionAdmins).FindOne(ctx, filter).Decode(&admin)
	if err != nil {
		return nil, findError(err)
	}
	return &admin, nil
}

// EnsureDefaultAdmin creates the seed admin with a conditional upsert keyed on
// is_default, so concurrent callers race safely: the first writer wins and the
// rest read the existing document back.
func (m *MongoDB) EnsureDefaultAdmin(ctx context.Context, seed *entity.Admin) (*entity.Admin, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "is_default", Value: true}}
	update := bson.D{{Key: "$setOnInsert", Value: seed}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var admin entity.Admin
	err = m.coll(connection, collectionAdmins).FindOneAndUpdate(ctx, filter, update, opts).Decode(&admin)
	if err != nil {
		return nil, fmt.Errorf("ensure default admin: %w", err)
	}
	return &admin, nil
}

// SetAdminReferralCode records the admin's display code after a mint.
func (m *MongoDB) SetAdminReferralCode(ctx context.Context, id primitive.ObjectID, code string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "referral_code", Value: code}}}}
	_, err = m.coll(connection, collectionAdmins).UpdateOne(ctx, filter, update)
	return err
}

func (m *MongoDB) UpdateAdminSettings(ctx context.Context, id primitive.ObjectID, settings entity.AdminSettings) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "settings", Value: settings}}}}
	_, err = m.coll(connection, collectionAdmins).UpdateOne(ctx, filter, update)
	return err
}

func (m *MongoDB) GetPublicAdmins(ctx context.Context) ([]entity.PublicAdmin, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "disabled", Value: false}}
	cursor, err := m.coll(connection, collectionAdmins).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var admins []entity.PublicAdmin
	if err = cursor.All(ctx, &admins); err != nil {
		return nil, err
	}
	return admins, nil
}

// GetNotifiableAdmins returns admins whose channel descriptor is complete.
func (m *MongoDB) GetNotifiableAdmins(ctx context.Context) ([]*entity.Admin, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{
			{Key: "channel.kind", Value: entity.ChannelWhatsApp},
			{Key: "channel.phone", Value: bson.D{{Key: "$nin", Value: bson.A{nil, ""}}}},
			{Key: "channel.api_key", Value: bson.D{{Key: "$nin", Value: bson.A{nil, ""}}}},
		},
		bson.D{
			{Key: "channel.kind", Value: entity.ChannelTelegram},
			{Key: "channel.chat_id", Value: bson.D{{Key: "$gt", Value: 0}}},
		},
	}}}
	cursor, err := m.coll(connection, collectionAdmins).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var admins []*entity.Admin
	if err = cursor.All(ctx, &admins); err != nil {
		return nil, err
	}
	return admins, nil
}

// ---- referral codes ----

func (m *MongoDB) CreateReferralCode(ctx context.Context, code *entity.ReferralCode) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	_, err = m.coll(connection, collectionReferralCodes).InsertOne(ctx, code)
	return err
}

func (m *MongoDB) GetReferralCode(ctx context.Context, code string) (*entity.ReferralCode, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	var rc entity.ReferralCode
	err = m.coll(connection, collectionReferralCodes).FindOne(ctx, bson.D{{Key: "code", Value: code}}).Decode(&rc)
	if err != nil {
		return nil, findError(err)
	}
	return &rc, nil
}

// BumpReferralCode increments the visit counter atomically. Unknown codes are
// a no-op, not an error.
func (m *MongoDB) BumpReferralCode(ctx context.Context, code string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "code", Value: code}}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "visits", Value: 1}}}}
	_, err = m.coll(connection, collectionReferralCodes).UpdateOne(ctx, filter, update)
	return err
}

func (m *MongoDB) GetReferralCodesByAdmin(ctx context.Context, adminId primitive.ObjectID) ([]*entity.ReferralCode, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	cursor, err := m.coll(connection, collectionReferralCodes).Find(ctx, bson.D{{Key: "admin_id", Value: adminId}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var codes []*entity.ReferralCode
	if err = cursor.All(ctx, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// ---- students ----

func (m *MongoDB) CreateStudent(ctx context.Context, student *entity.Student) (primitive.ObjectID, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return primitive.NilObjectID, err
	}
	defer m.disconnect(ctx, connection)

	res, err := m.coll(connection, collectionStudents).InsertOne(ctx, student)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

// SetStudentSecurityCode back-references the security code consumed at signup.
func (m *MongoDB) SetStudentSecurityCode(ctx context.Context, id, codeId primitive.ObjectID) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "security_code_used", Value: codeId}}}}
	_, err = m.coll(connection, collectionStudents).UpdateOne(ctx, filter, update)
	return err
}

func (m *MongoDB) GetStudentByUsername(ctx context.Context, username string) (*entity.Student, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	var student entity.Student
	err = m.coll(connection, collectionStudents).FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&student)
	if err != nil {
		return nil, findError(err)
	}
	return &student, nil
}

func (m *MongoDB) GetStudentById(ctx context.Context, id primitive.ObjectID) (*entity.Student, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	var student entity.Student
	err = m.coll(connection, collectionStudents).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&student)
	if err != nil {
		return nil, findError(err)
	}
	return &student, nil
}

func (m *MongoDB) GetStudentsByAdmin(ctx context.Context, adminId primitive.ObjectID) ([]*entity.Student, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	cursor, err := m.coll(connection, collectionStudents).Find(ctx, bson.D{{Key: "admin_id", Value: adminId}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var students []*entity.Student
	if err = cursor.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// ---- visits ----

func (m *MongoDB) CreateVisit(ctx context.Context, visit *entity.Visit) (primitive.ObjectID, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return primitive.NilObjectID, err
	}
	defer m.disconnect(ctx, connection)

	res, err := m.coll(connection, collectionVisits).InsertOne(ctx, visit)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

// ReconcileVisits links earlier anonymous visits to a signup. The filter
// excludes already-linked records, which is what makes the call idempotent.
func (m *MongoDB) ReconcileVisits(ctx context.Context, ip, referrer string, studentId primitive.ObjectID) (int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "ip", Value: ip}, {Key: "referrer", Value: referrer}, {Key: "signed_up", Value: false}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "signed_up", Value: true},
		{Key: "user_id", Value: studentId},
	}}}
	res, err := m.coll(connection, collectionVisits).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (m *MongoDB) CountVisits(ctx context.Context) (int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(ctx, connection)

	return m.coll(connection, collectionVisits).CountDocuments(ctx, bson.D{})
}

func (m *MongoDB) TopReferrers(ctx context.Context, limit int) ([]entity.ReferrerStat, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "referrer", Value: bson.D{{Key: "$nin", Value: bson.A{nil, "", entity.DirectReferrer}}}}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$referrer"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cursor, err := m.coll(connection, collectionVisits).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats []entity.ReferrerStat
	if err = cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// ---- activities ----

func (m *MongoDB) CreateActivity(ctx context.Context, activity *entity.Activity) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	_, err = m.coll(connection, collectionActivities).InsertOne(ctx, activity)
	return err
}

func (m *MongoDB) GetActivitiesByAdmin(ctx context.Context, adminId primitive.ObjectID, page, per int64) ([]*entity.Activity, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * per).
		SetLimit(per)
	cursor, err := m.coll(connection, collectionActivities).Find(ctx, bson.D{{Key: "admin_id", Value: adminId}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var activities []*entity.Activity
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// ---- security codes ----

func (m *MongoDB) CreateSecurityCodes(ctx context.Context, codes []*entity.SecurityCode) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	docs := make([]interface{}, 0, len(codes))
	for _, c := range codes {
		docs = append(docs, c)
	}
	_, err = m.coll(connection, collectionSecurityCodes).InsertMany(ctx, docs)
	return err
}

func (m *MongoDB) GetSecurityCodesByAdmin(ctx context.Context, adminId primitive.ObjectID) ([]*entity.SecurityCode, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	cursor, err := m.coll(connection, collectionSecurityCodes).Find(ctx, bson.D{{Key: "admin_id", Value: adminId}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var codes []*entity.SecurityCode
	if err = cursor.All(ctx, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// ConsumeSecurityCode marks a code used by a student. The used_by:nil filter
// makes consumption single-use: a second attempt finds no document and
// returns ErrNotFound.
func (m *MongoDB) ConsumeSecurityCode(ctx context.Context, adminId primitive.ObjectID, code string, studentId primitive.ObjectID) (*entity.SecurityCode, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "admin_id", Value: adminId}, {Key: "code", Value: code}, {Key: "used_by", Value: nil}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "used_by", Value: studentId}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var sc entity.SecurityCode
	err = m.coll(connection, collectionSecurityCodes).FindOneAndUpdate(ctx, filter, update, opts).Decode(&sc)
	if err != nil {
		return nil, findError(err)
	}
	return &sc, nil
}

// HasUnusedSecurityCode checks a code without consuming it (login pre-check).
func (m *MongoDB) HasUnusedSecurityCode(ctx context.Context, adminId primitive.ObjectID, code string) (bool, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "admin_id", Value: adminId}, {Key: "code", Value: code}, {Key: "used_by", Value: nil}}
	count, err := m.coll(connection, collectionSecurityCodes).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
