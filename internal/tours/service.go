package tours

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
)

type DBLayer interface {
	CreateTour(ctx context.Context, tour *models.Tour) error
	GetTourByID(ctx context.Context, id string) (*models.Tour, error)
	TourNameExists(ctx context.Context, name string) (bool, error)
	ListTours(ctx context.Context) ([]models.Tour, error)
	ListToursByLocation(ctx context.Context, location string) ([]models.Tour, error)
	SearchTours(ctx context.Context, fragment string) ([]models.Tour, error)
	DeleteTour(ctx context.Context, id string) error

	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroupByID(ctx context.Context, id string) (*models.Group, error)
	AddMember(ctx context.Context, member *models.GroupMember) error
	DeleteGroup(ctx context.Context, id string) error
}

type TourService struct {
	DB     DBLayer
	Logger *logger.Logger
}

func NewTourService(db DBLayer, log *logger.Logger) *TourService {
	return &TourService{DB: db, Logger: log}
}

type CreateTourRequest struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type CreateGroupRequest struct {
	Name   string `json:"name"`
	TourID string `json:"tourId"`
}

func (s *TourService) CreateTour(ctx context.Context, req CreateTourRequest) (*models.Tour, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.TrimSpace(req.Location) == "" {
		return nil, apperror.Validation("tour name and location are required")
	}
	exists, err := s.DB.TourNameExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.Validation("tour %q already exists", name)
	}

	now := time.Now().UTC()
	tour := &models.Tour{
		ID:          uuid.New().String(),
		Name:        name,
		Location:    strings.TrimSpace(req.Location),
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.DB.CreateTour(ctx, tour); err != nil {
		return nil, fmt.Errorf("create tour: %w", err)
	}
	s.Logger.Info("TOURS", fmt.Sprintf("Created tour %s (%s)", tour.Name, tour.ID))
	return tour, nil
}

func (s *TourService) GetTour(ctx context.Context, id string) (*models.Tour, error) {
	return s.DB.GetTourByID(ctx, id)
}

// ListTours returns every tour, or those whose name contains query.
func (s *TourService) ListTours(ctx context.Context, query string) ([]models.Tour, error) {
	if q := strings.TrimSpace(query); q != "" {
		return s.DB.SearchTours(ctx, q)
	}
	return s.DB.ListTours(ctx)
}

func (s *TourService) ListToursByLocation(ctx context.Context, location string) ([]models.Tour, error) {
	return s.DB.ListToursByLocation(ctx, location)
}

func (s *TourService) DeleteTour(ctx context.Context, id string) error {
	return s.DB.DeleteTour(ctx, id)
}

// CreateGroup makes leaderID the leader and first member of a new group.
func (s *TourService) CreateGroup(ctx context.Context, leaderID string, req CreateGroupRequest) (*models.Group, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Validation("group name is required")
	}
	if _, err := s.DB.GetTourByID(ctx, req.TourID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	group := &models.Group{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		LeaderID:  leaderID,
		TourID:    req.TourID,
		CreatedAt: now,
	}
	if err := s.DB.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	if err := s.DB.AddMember(ctx, &models.GroupMember{
		ID: uuid.New().String(), GroupID: group.ID, UserID: leaderID, JoinedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("add leader to group: %w", err)
	}
	return s.DB.GetGroupByID(ctx, group.ID)
}

func (s *TourService) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	return s.DB.GetGroupByID(ctx, id)
}

func (s *TourService) AddMember(ctx context.Context, groupID, userID string) (*models.Group, error) {
	if userID == "" {
		return nil, apperror.Validation("userId is required")
	}
	if _, err := s.DB.GetGroupByID(ctx, groupID); err != nil {
		return nil, err
	}
	if err := s.DB.AddMember(ctx, &models.GroupMember{
		ID: uuid.New().String(), GroupID: groupID, UserID: userID, JoinedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	return s.DB.GetGroupByID(ctx, groupID)
}

// DeleteGroup is open to the group leader and administrators.
func (s *TourService) DeleteGroup(ctx context.Context, id, callerID string, callerRole models.Role) error {
	group, err := s.DB.GetGroupByID(ctx, id)
	if err != nil {
		return err
	}
	if group.LeaderID != callerID && callerRole != models.RoleAdmin {
		return ErrNotGroupLeader
	}
	if err := s.DB.DeleteGroup(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("TOURS", fmt.Sprintf("Deleted group %s with %d members", id, len(group.Members)))
	return nil
}
