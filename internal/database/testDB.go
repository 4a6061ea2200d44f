package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"AOTF-backend/internal/config"
	m "AOTF-backend/internal/model"
	"AOTF-backend/internal/utilities"
)

var (
	testDBInstance *DBinstanceStruct
	teardown       func(context.Context, ...testcontainers.TerminateOption) error
	testDBOnce     sync.Mutex
)

// Exported test users and postings
var (
	TestAdminUser      m.User
	TestUserCandidate1 m.User
	TestUserCandidate2 m.User
	TestUserCandidate3 m.User
	TestUserRequester1 m.User
	TestUserRequester2 m.User

	// Add exported plain password
	TestSeedPassword = "SeedPass123!"

	// Exported seeded postings, both owned by TestUserRequester1
	TestPosting1 m.Posting
	TestPosting2 m.Posting
)

// GetTestDB starts a PostgreSQL test container and returns a teardown function,
// the DB instance, and any error encountered during setup.
func GetTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, *DBinstanceStruct, error) {
	testDBOnce.Lock()
	defer testDBOnce.Unlock()

	if testDBInstance != nil && teardown != nil {
		return teardown, testDBInstance, nil
	}

	// Database configuration
	var (
		dbName = "database"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, nil, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), nat.Port("5432/tcp"))
	if err != nil {
		return dbContainer.Terminate, nil, err
	}

	cfg := config.DatabaseConfig{
		Host:          dbHost,
		Port:          dbPort.Port(),
		User:          dbUser,
		Password:      dbPwd,
		Name:          dbName,
		UseConnString: true,
		ConnString:    fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbHost, dbPort.Port(), dbUser, dbPwd, dbName),
	}

	db, err := NewDBInstance(cfg, nil)
	if err != nil {
		return dbContainer.Terminate, nil, err
	}

	if err := seedTestData(db); err != nil {
		_ = dbContainer.Terminate(context.Background())
		return nil, nil, err
	}

	testDBInstance = db
	teardown = dbContainer.Terminate

	return dbContainer.Terminate, db, nil
}

// seedTestData inserts an admin, three candidates, two requesters and two open postings.
func seedTestData(db *DBinstanceStruct) error {
	var userCount int64
	if err := db.Model(&m.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount > 0 {
		return loadTestData(db)
	}

	userSpecs := []struct {
		username string
		name     string
		role     string
	}{
		{"candidate_1", "Anan Srisuk", m.RoleCandidate},
		{"candidate_2", "Beam Tutor", m.RoleCandidate},
		{"candidate_3", "Chai Freelancer", m.RoleCandidate},
		{"requester_1", "Dao Guardian", m.RoleRequester},
		{"requester_2", "Earn Client", m.RoleRequester},
		{"admin_user", "Admin", m.RoleAdmin},
	}

	// Pre-hash shared password for all seeded users
	hashedPwd, errHash := utilities.HashPassword(TestSeedPassword)
	if errHash != nil {
		return errHash
	}

	users := make([]m.User, 0, len(userSpecs))
	for _, s := range userSpecs {
		users = append(users, m.User{
			ID:          uuid.New(),
			Username:    s.username,
			Email:       ptr(s.username + "@example.com"),
			DisplayName: s.name,
			Role:        s.role,
			Password:    hashedPwd,
		})
	}

	if err := db.Create(&users).Error; err != nil {
		return err
	}
	assignTestUsers(users)

	postings := []m.Posting{
		{
			OwnerID: TestUserRequester1.ID,
			Status:  m.PostingStatusOpen,
			EditablePostingInfo: m.EditablePostingInfo{
				Kind:        m.PostingKindTutoring,
				Title:       "Grade 8 Math",
				Description: "Two evenings a week, algebra and geometry.",
				Subject:     "Mathematics",
				Location:    "Bangkok",
				Budget:      "400 THB/hour",
				Tags:        pq.StringArray{"math", "secondary"},
			},
		},
		{
			OwnerID: TestUserRequester1.ID,
			Status:  m.PostingStatusOpen,
			EditablePostingInfo: m.EditablePostingInfo{
				Kind:        m.PostingKindProject,
				Title:       "Landing page redesign",
				Description: "Responsive landing page for a tutoring school.",
				Location:    "Remote",
				Budget:      "15000 THB",
				Tags:        pq.StringArray{"web", "design"},
			},
		},
	}
	if err := db.Create(&postings).Error; err != nil {
		return err
	}
	TestPosting1 = postings[0]
	TestPosting2 = postings[1]

	return nil
}

// loadTestData populates exported variables when records already exist.
func loadTestData(db *DBinstanceStruct) error {
	var users []m.User
	if err := db.Where("username IN ?", []string{
		"candidate_1", "candidate_2", "candidate_3", "requester_1", "requester_2", "admin_user",
	}).Find(&users).Error; err != nil {
		return err
	}
	assignTestUsers(users)

	var posts []m.Posting
	if err := db.Order("id ASC").Limit(2).Find(&posts).Error; err != nil {
		return err
	}
	if len(posts) > 0 {
		TestPosting1 = posts[0]
	}
	if len(posts) > 1 {
		TestPosting2 = posts[1]
	}
	return nil
}

func assignTestUsers(users []m.User) {
	for _, u := range users {
		switch u.Username {
		case "candidate_1":
			TestUserCandidate1 = u
		case "candidate_2":
			TestUserCandidate2 = u
		case "candidate_3":
			TestUserCandidate3 = u
		case "requester_1":
			TestUserRequester1 = u
		case "requester_2":
			TestUserRequester2 = u
		case "admin_user":
			TestAdminUser = u
		}
	}
}

// ptr helper
func ptr[T any](v T) *T { return &v }
