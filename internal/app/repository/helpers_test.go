package repository

import (
	"testing"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	return testDB
}

func createUser(t *testing.T, testDB *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		FullName:     "Test User",
		Role:         model.RoleUser,
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func createProduct(t *testing.T, testDB *gorm.DB, name string, price float64, stock int, categoryID *uint) *model.Product {
	t.Helper()
	product := &model.Product{
		Name:       name,
		Price:      price,
		Stock:      stock,
		CategoryID: categoryID,
	}
	require.NoError(t, testDB.Create(product).Error)
	return product
}
