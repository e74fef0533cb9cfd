package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "github.com/glkeru/projxchange/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const purchaseCompleted = "completed"

// ProjectsDB - каталог проектов и покупки пользователей
type ProjectsDB struct {
	mgo       *mongo.Client
	projects  *mongo.Collection
	purchases *mongo.Collection
}

func NewProjectsDB(mng string) (*ProjectsDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mng == "" {
		return nil, fmt.Errorf("env ENTITLEMENT_MONGO is not set")
	}

	options := options.Client().ApplyURI("mongodb://" + mng)
	client, err := mongo.Connect(ctx, options)
	if err != nil {
		return nil, err
	}
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newProjectsDB(client), nil
}

func newProjectsDB(client *mongo.Client) *ProjectsDB {
	db := client.Database("projxchange")
	return &ProjectsDB{client, db.Collection("projects"), db.Collection("purchases")}
}

func (p ProjectsDB) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	var project models.Project
	err := p.projects.FindOne(ctx, bson.M{"id": projectID}).Decode(&project)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return project, models.ErrNotFound
	}
	if err != nil {
		return project, err
	}
	return project, nil
}

// Статус покупки; нет записи - не куплено
func (p ProjectsDB) GetUserStatus(ctx context.Context, userID string, projectID string) (*bool, error) {
	filter := bson.M{"user_id": userID, "project_id": projectID, "status": purchaseCompleted}
	err := p.purchases.FindOne(ctx, filter).Err()
	purchased := true
	if errors.Is(err, mongo.ErrNoDocuments) {
		purchased = false
	} else if err != nil {
		return nil, err
	}
	return &purchased, nil
}

func (p ProjectsDB) Close(ctx context.Context) error {
	return p.mgo.Disconnect(ctx)
}
