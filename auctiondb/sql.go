package auctiondb

import (
	"context"
	"fmt"
	"time"

	"github.com/Zappss/ido-contracts/auction"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// SQLConfig holds database configuration.
type SQLConfig struct {
	Host               string `long:"host" description:"Database server hostname."`
	Port               int    `long:"port" description:"Database server port."`
	User               string `long:"user" description:"Database user."`
	Password           string `long:"password" description:"Database user's password."`
	DBName             string `long:"dbname" description:"Database name to use."`
	MaxOpenConnections int    `long:"maxconnections" description:"Max open connections to keep alive to the database server."`
	RequireSSL         bool   `long:"requiressl" description:"Whether to require using SSL (mode: require) when connecting to the server."`
}

// SQLAuction is the SQL reporting model of a cleared auction. The amounts
// are stored as decimal strings, they don't fit into SQL integer types.
type SQLAuction struct {
	AuctionID                  uint64 `gorm:"primaryKey"`
	OfferedAsset               string
	BiddingAsset               string
	AuctionEnd                 time.Time
	ClearingPriceNumerator     string
	ClearingPriceDenominator   string
	ClearingUserID             uint64
	VolumeClearingPriceOrder   string
	FeeNumerator               uint64
	FundingThresholdNotReached bool
	UpdatedAt                  time.Time
}

// TableName returns the name of the SQL table this model belongs in.
func (s *SQLAuction) TableName() string {
	return "auctions"
}

// SQLStore is the main object to communicate with the SQL db.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore constructs a new SQLStore.
func NewSQLStore(cfg *SQLConfig) (*SQLStore, error) {
	db, err := openPostgresDB(cfg)
	if err != nil {
		return nil, err
	}

	return &SQLStore{db: db}, nil
}

// openPostgresDB opens a PostgreSQL database and initializes the tables
// corresponding to the SQL models defined in this package.
func openPostgresDB(cfg *SQLConfig) (*gorm.DB, error) {
	sslMode := "disable"
	if cfg.RequireSSL {
		sslMode = "require"
	}

	dsn := fmt.Sprintf(
		"user=%v password=%v dbname=%v host=%v port=%v sslmode=%v",
		cfg.User, cfg.Password, cfg.DBName, cfg.Host, cfg.Port,
		sslMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDb, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConnections != 0 {
		sqlDb.SetMaxOpenConns(cfg.MaxOpenConnections)
	}

	if err := db.AutoMigrate(&SQLAuction{}); err != nil {
		return nil, err
	}

	return db, nil
}

// UpsertAuction writes the reporting row of a cleared auction, overwriting
// any previous version.
func (s *SQLStore) UpsertAuction(ctx context.Context,
	a *auction.Auction) error {

	row := &SQLAuction{
		AuctionID:                  a.ID,
		OfferedAsset:               string(a.OfferedAsset),
		BiddingAsset:               string(a.BiddingAsset),
		AuctionEnd:                 a.AuctionEnd,
		ClearingPriceNumerator:     a.ClearingOrder.BuyAmount().Dec(),
		ClearingPriceDenominator:   a.ClearingOrder.SellAmount().Dec(),
		ClearingUserID:             a.ClearingOrder.UserID(),
		VolumeClearingPriceOrder:   a.VolumeClearingPriceOrder.Dec(),
		FeeNumerator:               a.FeeNumerator,
		FundingThresholdNotReached: a.FundingThresholdNotReached,
		UpdatedAt:                  time.Now(),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(
			&SQLAuction{}, "auction_id = ?", a.ID,
		).Error; err != nil {
			return err
		}

		return tx.Create(row).Error
	})
}
