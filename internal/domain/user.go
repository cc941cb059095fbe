package domain

type User struct {
	ID     string   `bson:"_id"`
	Coins  int64    `bson:"coins"`
	Orders []string `bson:"orders,omitempty"`
}
