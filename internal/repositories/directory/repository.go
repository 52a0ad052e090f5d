package directory

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	projectsTable        = "projects"
	teamsTable           = "teams"
	usersTable           = "users"
	clientsTable         = "clients"
	workSessionsTable    = "work_sessions"
	agentsTable          = "agents"
	teamMembershipsTable = "team_memberships"
)

// DirectoryRepository is the data access layer for the directory records
// that ground the graph: projects, teams, users, clients, work sessions,
// agents and team memberships. Directory IDs originate in external systems,
// so every write is an upsert keyed on (id, domain_id).
type DirectoryRepository interface {
	UpsertProject(ctx context.Context, project *models.Project) (*models.Project, error)
	GetProject(ctx context.Context, domainID, id string) (*models.Project, error)
	ListProjects(ctx context.Context, domainID string) ([]models.Project, error)
	SetProjectEntityID(ctx context.Context, domainID, id, entityID string) error

	UpsertTeam(ctx context.Context, team *models.Team) (*models.Team, error)
	GetTeam(ctx context.Context, domainID, id string) (*models.Team, error)
	ListTeams(ctx context.Context, domainID string) ([]models.Team, error)
	SetTeamEntityID(ctx context.Context, domainID, id, entityID string) error

	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, domainID, id string) (*models.User, error)
	ListUsers(ctx context.Context, domainID string) ([]models.User, error)
	SetUserEntityID(ctx context.Context, domainID, id, entityID string) error

	UpsertClient(ctx context.Context, client *models.Client) (*models.Client, error)
	GetClient(ctx context.Context, domainID, id string) (*models.Client, error)
	ListClients(ctx context.Context, domainID string) ([]models.Client, error)
	SetClientEntityID(ctx context.Context, domainID, id, entityID string) error

	UpsertWorkSession(ctx context.Context, session *models.WorkSession) (*models.WorkSession, error)
	GetWorkSession(ctx context.Context, domainID, id string) (*models.WorkSession, error)
	ListWorkSessions(ctx context.Context, domainID string) ([]models.WorkSession, error)

	UpsertAgent(ctx context.Context, agent *models.Agent) (*models.Agent, error)
	GetAgent(ctx context.Context, domainID, id string) (*models.Agent, error)
	ListAgents(ctx context.Context, domainID string) ([]models.Agent, error)

	AddTeamMember(ctx context.Context, domainID, teamID, userID, role string) error
	RemoveTeamMember(ctx context.Context, domainID, teamID, userID string) error
	ListTeamMembers(ctx context.Context, domainID, teamID string) ([]models.TeamMembershipRecord, error)

	GetPrincipal(ctx context.Context, domainID, userID string) (*models.Principal, error)

	ListDomainIDs(ctx context.Context) ([]string, error)
	PurgeDomain(ctx context.Context, domainID string) (map[string]int, error)
}

// Repository implements DirectoryRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new directory repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}
