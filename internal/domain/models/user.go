package models

// User представляет покупателя или администратора магазина
type User struct {
	ID       int64
	Email    string
	PassHash []byte
	IsAdmin  bool
}
