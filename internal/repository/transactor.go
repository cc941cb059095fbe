package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

type mongoTransactor struct {
	client *mongo.Client
}

// NewTransactor needs a replica set or sharded cluster; standalone servers reject transactions.
func NewTransactor(client *mongo.Client) Transactor {
	return &mongoTransactor{client: client}
}

// WithTransaction may run fn more than once on transient errors, so fn must only touch the database.
func (t *mongoTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
