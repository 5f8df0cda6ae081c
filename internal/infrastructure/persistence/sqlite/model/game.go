package model

type Game struct {
	GameID    string `gorm:"column:game_id;type:text;primaryKey"`
	Title     string `gorm:"column:title;type:text;not null"`
	OwnerID   string `gorm:"column:owner_id;type:text;not null;index"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (Game) TableName() string {
	return "games"
}
