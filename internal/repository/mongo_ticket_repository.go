package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type mongoComment struct {
	Text      string             `bson:"text"`
	User      primitive.ObjectID `bson:"user"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type mongoTicket struct {
	ID               primitive.ObjectID     `bson:"_id,omitempty"`
	TicketNumber     string                 `bson:"ticketNumber"`
	Subject          string                 `bson:"subject"`
	Description      string                 `bson:"description"`
	Status           domain.TicketStatus    `bson:"status"`
	Priority         domain.TicketPriority  `bson:"priority"`
	Department       domain.Department      `bson:"department"`
	CreatedBy        primitive.ObjectID     `bson:"createdBy"`
	AssignedTo       *primitive.ObjectID    `bson:"assignedTo,omitempty"`
	Comments         []mongoComment         `bson:"comments"`
	Attachments      []string               `bson:"attachments"`
	AICategorization *domain.Categorization `bson:"aiCategorization,omitempty"`
	CreatedAt        time.Time              `bson:"createdAt"`
	UpdatedAt        time.Time              `bson:"updatedAt"`
}

func (d mongoTicket) toDomain() domain.Ticket {
	t := domain.Ticket{
		ID:               d.ID.Hex(),
		TicketNumber:     d.TicketNumber,
		Subject:          d.Subject,
		Description:      d.Description,
		Status:           d.Status,
		Priority:         d.Priority,
		Department:       d.Department,
		CreatedBy:        d.CreatedBy.Hex(),
		Comments:         make([]domain.Comment, 0, len(d.Comments)),
		Attachments:      d.Attachments,
		AICategorization: d.AICategorization,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.AssignedTo != nil {
		assignee := d.AssignedTo.Hex()
		t.AssignedTo = &assignee
	}
	if t.Attachments == nil {
		t.Attachments = []string{}
	}
	for _, c := range d.Comments {
		t.Comments = append(t.Comments, domain.Comment{Text: c.Text, AuthorID: c.User.Hex(), CreatedAt: c.CreatedAt})
	}
	return t
}

type mongoTicketRepository struct {
	coll *mongo.Collection
}

// NewMongoTicketRepository returns a MongoDB-backed implementation.
// Comments are embedded in the ticket document.
func NewMongoTicketRepository(db *mongo.Database) TicketRepository {
	return &mongoTicketRepository{coll: db.Collection(TicketsCollection)}
}

func (r *mongoTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	owner, ok := objectID(ticket.CreatedBy)
	if !ok {
		return ErrNotFound
	}
	assignee, err := optionalObjectID(ticket.AssignedTo)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := mongoTicket{
		ID:               primitive.NewObjectID(),
		TicketNumber:     ticket.TicketNumber,
		Subject:          ticket.Subject,
		Description:      ticket.Description,
		Status:           ticket.Status,
		Priority:         ticket.Priority,
		Department:       ticket.Department,
		CreatedBy:        owner,
		AssignedTo:       assignee,
		Comments:         []mongoComment{},
		Attachments:      ticket.Attachments,
		AICategorization: ticket.AICategorization,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if doc.Attachments == nil {
		doc.Attachments = []string{}
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return mapMongoError(err)
	}
	ticket.ID = doc.ID.Hex()
	ticket.Comments = []domain.Comment{}
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	return nil
}

// UpdateFields $sets only the fields named in changes and returns the
// updated document.
func (r *mongoTicketRepository) UpdateFields(ctx context.Context, id string, changes TicketChanges) (*domain.Ticket, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	set := bson.M{"updatedAt": time.Now().UTC().Truncate(time.Millisecond)}
	if changes.Subject != nil {
		set["subject"] = *changes.Subject
	}
	if changes.Description != nil {
		set["description"] = *changes.Description
	}
	if changes.Status != nil {
		set["status"] = *changes.Status
	}
	if changes.Priority != nil {
		set["priority"] = *changes.Priority
	}
	if changes.Department != nil {
		set["department"] = *changes.Department
	}
	if changes.AssignedTo != nil {
		assignee, err := optionalObjectID(changes.AssignedTo)
		if err != nil {
			return nil, err
		}
		set["assignedTo"] = assignee
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc mongoTicket
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	ticket := doc.toDomain()
	return &ticket, nil
}

func (r *mongoTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoTicketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	return r.findOne(ctx, bson.M{"ticketNumber": number})
}

func (r *mongoTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query := bson.M{}
	if filter.CreatedBy != nil {
		owner, ok := objectID(*filter.CreatedBy)
		if !ok {
			return nil, nil
		}
		query["createdBy"] = owner
	}
	if filter.Department != nil {
		query["department"] = *filter.Department
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if len(filter.Priorities) > 0 {
		query["priority"] = bson.M{"$in": filter.Priorities}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
		if filter.Offset > 0 {
			opts.SetSkip(int64(filter.Offset))
		}
	}

	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var result []domain.Ticket
	for cur.Next(ctx) {
		var doc mongoTicket
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toDomain())
	}
	return result, cur.Err()
}

// AddComment pushes the comment and bumps updatedAt in a single document write.
func (r *mongoTicketRepository) AddComment(ctx context.Context, ticketID string, comment domain.Comment) error {
	oid, ok := objectID(ticketID)
	if !ok {
		return ErrNotFound
	}
	author, ok := objectID(comment.AuthorID)
	if !ok {
		return ErrNotFound
	}
	entry := mongoComment{Text: comment.Text, User: author, CreatedAt: comment.CreatedAt}
	update := bson.M{
		"$push": bson.M{"comments": entry},
		"$set":  bson.M{"updatedAt": comment.CreatedAt},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoTicketRepository) Stats(ctx context.Context, createdBy *string) (domain.TicketStats, error) {
	var stats domain.TicketStats
	base := bson.M{}
	if createdBy != nil {
		owner, ok := objectID(*createdBy)
		if !ok {
			return stats, nil
		}
		base["createdBy"] = owner
	}
	count := func(field string, value any) (int64, error) {
		filter := bson.M{field: value}
		for k, v := range base {
			filter[k] = v
		}
		return r.coll.CountDocuments(ctx, filter)
	}
	var err error
	if stats.Open, err = count("status", domain.TicketStatusOpen); err != nil {
		return stats, err
	}
	if stats.InProgress, err = count("status", domain.TicketStatusInProgress); err != nil {
		return stats, err
	}
	if stats.Resolved, err = count("status", domain.TicketStatusResolved); err != nil {
		return stats, err
	}
	stats.Urgent, err = count("priority", domain.TicketPriorityUrgent)
	return stats, err
}

func (r *mongoTicketRepository) findOne(ctx context.Context, filter bson.M) (*domain.Ticket, error) {
	var doc mongoTicket
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	ticket := doc.toDomain()
	return &ticket, nil
}

func optionalObjectID(id *string) (*primitive.ObjectID, error) {
	if id == nil {
		return nil, nil
	}
	oid, ok := objectID(*id)
	if !ok {
		return nil, ErrNotFound
	}
	return &oid, nil
}
