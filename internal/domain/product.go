package domain

type Product struct {
	ID        string  `bson:"_id" json:"id"`
	Name      string  `bson:"name" json:"name"`
	Price     float64 `bson:"price" json:"price"`
	CoinPrice int64   `bson:"coin_price" json:"coin_price"`
	Available bool    `bson:"available" json:"available"`
}
