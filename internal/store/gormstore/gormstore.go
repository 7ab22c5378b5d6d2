// Package gormstore implements store.Store on gorm, backed by MySQL in
// production or SQLite for single-node deployments and tests.
package gormstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/status"
)

// Supported drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config selects the database and tunes its connection pool.
type Config struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	// Migrate runs AutoMigrate on open.
	Migrate bool `mapstructure:"migrate"`
}

// Store is a gorm-backed store.Store.
type Store struct {
	db    *gorm.DB
	clock *store.Clock
}

var _ store.Store = (*Store)(nil)

// Open connects to the configured database and applies the pool settings.
func Open(cfg Config, logger *zerolog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case DriverMySQL:
		dialector = mysql.New(mysql.Config{DSN: cfg.DSN})
	case DriverSQLite, "sqlite3":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file::memory:"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.NewConfigError("database", fmt.Sprintf("unsupported driver %q", cfg.Driver), nil)
	}

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = time.Second
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newGormLogger(logger, slow),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if dialector.Name() == DriverSQLite {
		// An in-memory database lives and dies with its single connection.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 100))
		sqlDB.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 10))
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		} else {
			sqlDB.SetConnMaxLifetime(time.Hour)
		}
	}

	s := New(db)
	if cfg.Migrate {
		if err := s.Migrate(context.Background()); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return s, nil
}

// New wraps an open gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db, clock: store.NewClock()}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements store.Store.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// notFound maps gorm's record-not-found onto the domain error.
func notFound(err error, resource, id string) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NewNotFoundError(resource, id)
	}
	return err
}

// exists reports whether model has a row matching the query.
func exists(tx *gorm.DB, model any, query string, args ...any) (bool, error) {
	var n int64
	if err := tx.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) requireOrg(tx *gorm.DB, id string) error {
	ok, err := exists(tx, &organizationModel{}, "id = ?", id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewNotFoundError("organization", id)
	}
	return nil
}

// Organizations

// Organization implements store.OrganizationStore.
func (s *Store) Organization(ctx context.Context, slug string) (*status.Organization, error) {
	var m organizationModel
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&m).Error; err != nil {
		return nil, notFound(err, "organization", slug)
	}
	o := m.toDomain()
	return &o, nil
}

// OrganizationByID implements store.OrganizationStore.
func (s *Store) OrganizationByID(ctx context.Context, id string) (*status.Organization, error) {
	var m organizationModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "organization", id)
	}
	o := m.toDomain()
	return &o, nil
}

// Organizations implements store.OrganizationStore.
func (s *Store) Organizations(ctx context.Context) ([]status.Organization, error) {
	var rows []organizationModel
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]status.Organization, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	slices.SortStableFunc(out, func(a, b status.Organization) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// CreateOrganization implements store.OrganizationStore.
func (s *Store) CreateOrganization(ctx context.Context, org *status.Organization) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dup, err := exists(tx, &organizationModel{}, "slug = ?", org.Slug)
		if err != nil {
			return err
		}
		if dup {
			return errors.NewAlreadyExistsError("organization", org.Slug)
		}
		org.ID = newID(org.ID)
		org.CreatedAt = s.clock.Stamp()
		org.UpdatedAt = org.CreatedAt
		m := organizationFrom(org)
		return tx.Create(&m).Error
	})
}

// CreateTeam implements store.OrganizationStore.
func (s *Store) CreateTeam(ctx context.Context, org *status.Organization, owner *status.Member) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dup, err := exists(tx, &organizationModel{}, "slug = ?", org.Slug)
		if err != nil {
			return err
		}
		if dup {
			return errors.NewAlreadyExistsError("organization", org.Slug)
		}
		org.ID = newID(org.ID)
		org.CreatedAt = s.clock.Stamp()
		org.UpdatedAt = org.CreatedAt
		m := organizationFrom(org)
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		if owner.UserID == "" {
			return errors.NewValidationError("userId", owner.UserID, "owner is required")
		}
		owner.OrganizationID = org.ID
		owner.ID = newID(owner.ID)
		if owner.Role == "" {
			owner.Role = status.RoleMember
		}
		owner.CreatedAt = s.clock.Stamp()
		owner.UpdatedAt = owner.CreatedAt
		row := memberFrom(owner)
		return tx.Create(&row).Error
	})
}

// UpdateOrganization implements store.OrganizationStore.
func (s *Store) UpdateOrganization(ctx context.Context, org *status.Organization) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur organizationModel
		if err := tx.Where("id = ?", org.ID).First(&cur).Error; err != nil {
			return notFound(err, "organization", org.ID)
		}
		org.Slug = cur.Slug
		org.CreatedAt = cur.CreatedAt.UTC()
		org.UpdatedAt = s.clock.Stamp()
		m := organizationFrom(org)
		return tx.Save(&m).Error
	})
}

// DeleteOrganization implements store.OrganizationStore.
func (s *Store) DeleteOrganization(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireOrg(tx, id); err != nil {
			return err
		}
		incidents := tx.Model(&incidentModel{}).Select("id").Where("organization_id = ?", id)
		maintenances := tx.Model(&maintenanceModel{}).Select("id").Where("organization_id = ?", id)
		services := tx.Model(&serviceModel{}).Select("id").Where("organization_id = ?", id)
		steps := []*gorm.DB{
			tx.Where("incident_id IN (?)", incidents).Delete(&incidentUpdateModel{}),
			tx.Where("incident_id IN (?) OR service_id IN (?)", incidents, services).Delete(&incidentServiceModel{}),
			tx.Where("maintenance_id IN (?) OR service_id IN (?)", maintenances, services).Delete(&maintenanceServiceModel{}),
			tx.Where("organization_id = ?", id).Delete(&incidentModel{}),
			tx.Where("organization_id = ?", id).Delete(&maintenanceModel{}),
			tx.Where("organization_id = ?", id).Delete(&serviceModel{}),
			tx.Where("organization_id = ?", id).Delete(&memberModel{}),
			tx.Where("id = ?", id).Delete(&organizationModel{}),
		}
		for _, step := range steps {
			if step.Error != nil {
				return step.Error
			}
		}
		return nil
	})
}

// Services

// Services implements store.ServiceStore.
func (s *Store) Services(ctx context.Context, orgID string) ([]status.Service, error) {
	q := s.db.WithContext(ctx).Order("created_at")
	if orgID != "" {
		q = q.Where("organization_id = ?", orgID)
	}
	var rows []serviceModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]status.Service, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	slices.SortStableFunc(out, func(a, b status.Service) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// Service implements store.ServiceStore.
func (s *Store) Service(ctx context.Context, id string) (*status.Service, error) {
	var m serviceModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "service", id)
	}
	svc := m.toDomain()
	return &svc, nil
}

// CreateService implements store.ServiceStore.
func (s *Store) CreateService(ctx context.Context, svc *status.Service) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireOrg(tx, svc.OrganizationID); err != nil {
			return err
		}
		svc.ID = newID(svc.ID)
		if svc.Status == "" {
			svc.Status = status.ServiceOperational
		}
		svc.CreatedAt = s.clock.Stamp()
		svc.UpdatedAt = svc.CreatedAt
		m := serviceFrom(svc)
		return tx.Create(&m).Error
	})
}

// UpdateService implements store.ServiceStore.
func (s *Store) UpdateService(ctx context.Context, svc *status.Service) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur serviceModel
		if err := tx.Where("id = ?", svc.ID).First(&cur).Error; err != nil {
			return notFound(err, "service", svc.ID)
		}
		svc.OrganizationID = cur.OrganizationID
		svc.CreatedAt = cur.CreatedAt.UTC()
		svc.UpdatedAt = s.clock.Stamp()
		m := serviceFrom(svc)
		return tx.Save(&m).Error
	})
}

// DeleteService implements store.ServiceStore.
func (s *Store) DeleteService(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&serviceModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.NewNotFoundError("service", id)
		}
		if err := tx.Where("service_id = ?", id).Delete(&incidentServiceModel{}).Error; err != nil {
			return err
		}
		return tx.Where("service_id = ?", id).Delete(&maintenanceServiceModel{}).Error
	})
}

// Incidents

// loadIncidents attaches service links and updates to the given rows.
func loadIncidents(tx *gorm.DB, rows []incidentModel) ([]status.Incident, error) {
	out := make([]status.Incident, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	var links []incidentServiceModel
	if err := tx.Where("incident_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, err
	}
	serviceIDs := make(map[string][]string, len(rows))
	for _, l := range links {
		serviceIDs[l.IncidentID] = append(serviceIDs[l.IncidentID], l.ServiceID)
	}

	var updates []incidentUpdateModel
	if err := tx.Where("incident_id IN ?", ids).Order("created_at DESC").Find(&updates).Error; err != nil {
		return nil, err
	}
	slices.SortStableFunc(updates, func(a, b incidentUpdateModel) int { return b.CreatedAt.Compare(a.CreatedAt) })
	byIncident := make(map[string][]incidentUpdateModel, len(rows))
	for _, u := range updates {
		byIncident[u.IncidentID] = append(byIncident[u.IncidentID], u)
	}

	for _, r := range rows {
		ids := serviceIDs[r.ID]
		slices.Sort(ids)
		out = append(out, r.toDomain(ids, byIncident[r.ID]))
	}
	return out, nil
}

// Incidents implements store.IncidentStore.
func (s *Store) Incidents(ctx context.Context, orgID string) ([]status.Incident, error) {
	tx := s.db.WithContext(ctx)
	q := tx.Order("created_at DESC")
	if orgID != "" {
		q = q.Where("organization_id = ?", orgID)
	}
	var rows []incidentModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out, err := loadIncidents(tx, rows)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b status.Incident) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// Incident implements store.IncidentStore.
func (s *Store) Incident(ctx context.Context, id string) (*status.Incident, error) {
	return s.incident(s.db.WithContext(ctx), id)
}

func (s *Store) incident(tx *gorm.DB, id string) (*status.Incident, error) {
	var m incidentModel
	if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "incident", id)
	}
	out, err := loadIncidents(tx, []incidentModel{m})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// CreateIncident implements store.IncidentStore.
func (s *Store) CreateIncident(ctx context.Context, inc *status.Incident) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireOrg(tx, inc.OrganizationID); err != nil {
			return err
		}
		inc.ID = newID(inc.ID)
		if inc.Status == "" {
			inc.Status = status.IncidentInvestigating
		}
		if inc.Severity == "" {
			inc.Severity = status.SeverityMinor
		}
		if inc.ServiceIDs == nil {
			inc.ServiceIDs = []string{}
		}
		inc.Updates = []status.IncidentUpdate{}
		inc.CreatedAt = s.clock.Stamp()
		inc.UpdatedAt = inc.CreatedAt
		if inc.Status == status.IncidentResolved {
			t := inc.CreatedAt
			inc.ResolvedAt = &t
		}
		m := incidentModel{
			ID:             inc.ID,
			OrganizationID: inc.OrganizationID,
			Title:          inc.Title,
			Description:    inc.Description,
			Status:         string(inc.Status),
			Severity:       string(inc.Severity),
			CreatedAt:      inc.CreatedAt,
			UpdatedAt:      inc.UpdatedAt,
			ResolvedAt:     inc.ResolvedAt,
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		for _, sid := range dedupe(inc.ServiceIDs) {
			if err := tx.Create(&incidentServiceModel{IncidentID: inc.ID, ServiceID: sid}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// AddIncidentUpdate implements store.IncidentStore.
func (s *Store) AddIncidentUpdate(ctx context.Context, upd *status.IncidentUpdate) (*status.Incident, error) {
	var out *status.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur incidentModel
		if err := tx.Where("id = ?", upd.IncidentID).First(&cur).Error; err != nil {
			return notFound(err, "incident", upd.IncidentID)
		}
		now := s.clock.Stamp()
		upd.ID = newID(upd.ID)
		upd.CreatedAt = now
		row := incidentUpdateModel{
			ID:         upd.ID,
			IncidentID: upd.IncidentID,
			Message:    upd.Message,
			Status:     string(upd.Status),
			CreatedAt:  now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		changes := map[string]any{"status": string(upd.Status), "updated_at": now}
		if upd.Status == status.IncidentResolved {
			changes["resolved_at"] = now
		}
		if err := tx.Model(&incidentModel{}).Where("id = ?", cur.ID).Updates(changes).Error; err != nil {
			return err
		}
		inc, err := s.incident(tx, cur.ID)
		out = inc
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetIncidentStatus implements store.IncidentStore.
func (s *Store) SetIncidentStatus(ctx context.Context, id string, st status.IncidentStatus) (*status.Incident, error) {
	var out *status.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur incidentModel
		if err := tx.Where("id = ?", id).First(&cur).Error; err != nil {
			return notFound(err, "incident", id)
		}
		now := s.clock.Stamp()
		changes := map[string]any{"status": string(st), "updated_at": now}
		if st == status.IncidentResolved {
			changes["resolved_at"] = now
		}
		if err := tx.Model(&incidentModel{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return err
		}
		inc, err := s.incident(tx, id)
		out = inc
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteIncident implements store.IncidentStore.
func (s *Store) DeleteIncident(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&incidentModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.NewNotFoundError("incident", id)
		}
		if err := tx.Where("incident_id = ?", id).Delete(&incidentUpdateModel{}).Error; err != nil {
			return err
		}
		return tx.Where("incident_id = ?", id).Delete(&incidentServiceModel{}).Error
	})
}

// Maintenance

func loadMaintenances(tx *gorm.DB, rows []maintenanceModel) ([]status.Maintenance, error) {
	out := make([]status.Maintenance, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var links []maintenanceServiceModel
	if err := tx.Where("maintenance_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, err
	}
	serviceIDs := make(map[string][]string, len(rows))
	for _, l := range links {
		serviceIDs[l.MaintenanceID] = append(serviceIDs[l.MaintenanceID], l.ServiceID)
	}
	for _, r := range rows {
		ids := serviceIDs[r.ID]
		slices.Sort(ids)
		out = append(out, r.toDomain(ids))
	}
	return out, nil
}

// Maintenances implements store.MaintenanceStore.
func (s *Store) Maintenances(ctx context.Context, orgID string) ([]status.Maintenance, error) {
	tx := s.db.WithContext(ctx)
	q := tx.Order("scheduled_start DESC")
	if orgID != "" {
		q = q.Where("organization_id = ?", orgID)
	}
	var rows []maintenanceModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out, err := loadMaintenances(tx, rows)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b status.Maintenance) int { return b.ScheduledStart.Compare(a.ScheduledStart) })
	return out, nil
}

// Maintenance implements store.MaintenanceStore.
func (s *Store) Maintenance(ctx context.Context, id string) (*status.Maintenance, error) {
	tx := s.db.WithContext(ctx)
	var m maintenanceModel
	if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "maintenance", id)
	}
	out, err := loadMaintenances(tx, []maintenanceModel{m})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func replaceMaintenanceServices(tx *gorm.DB, id string, serviceIDs []string) error {
	if err := tx.Where("maintenance_id = ?", id).Delete(&maintenanceServiceModel{}).Error; err != nil {
		return err
	}
	for _, sid := range dedupe(serviceIDs) {
		if err := tx.Create(&maintenanceServiceModel{MaintenanceID: id, ServiceID: sid}).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateMaintenance implements store.MaintenanceStore.
func (s *Store) CreateMaintenance(ctx context.Context, m *status.Maintenance) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireOrg(tx, m.OrganizationID); err != nil {
			return err
		}
		m.ID = newID(m.ID)
		if m.Status == "" {
			m.Status = status.MaintenanceScheduled
		}
		if m.ServiceIDs == nil {
			m.ServiceIDs = []string{}
		}
		m.CreatedAt = s.clock.Stamp()
		m.UpdatedAt = m.CreatedAt
		row := maintenanceFrom(m)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return replaceMaintenanceServices(tx, m.ID, m.ServiceIDs)
	})
}

// UpdateMaintenance implements store.MaintenanceStore.
func (s *Store) UpdateMaintenance(ctx context.Context, m *status.Maintenance) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur maintenanceModel
		if err := tx.Where("id = ?", m.ID).First(&cur).Error; err != nil {
			return notFound(err, "maintenance", m.ID)
		}
		m.OrganizationID = cur.OrganizationID
		m.CreatedAt = cur.CreatedAt.UTC()
		m.UpdatedAt = s.clock.Stamp()
		if m.ServiceIDs == nil {
			m.ServiceIDs = []string{}
		}
		row := maintenanceFrom(m)
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		return replaceMaintenanceServices(tx, m.ID, m.ServiceIDs)
	})
}

// DeleteMaintenance implements store.MaintenanceStore.
func (s *Store) DeleteMaintenance(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&maintenanceModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.NewNotFoundError("maintenance", id)
		}
		return tx.Where("maintenance_id = ?", id).Delete(&maintenanceServiceModel{}).Error
	})
}

// Members

func (s *Store) members(ctx context.Context, query string, arg string) ([]status.Member, error) {
	var rows []memberModel
	if err := s.db.WithContext(ctx).Where(query, arg).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]status.Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	slices.SortStableFunc(out, func(a, b status.Member) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// Members implements store.MemberStore.
func (s *Store) Members(ctx context.Context, orgID string) ([]status.Member, error) {
	return s.members(ctx, "organization_id = ?", orgID)
}

// MembershipsOf implements store.MemberStore.
func (s *Store) MembershipsOf(ctx context.Context, userID string) ([]status.Member, error) {
	return s.members(ctx, "user_id = ?", userID)
}

// Member implements store.MemberStore.
func (s *Store) Member(ctx context.Context, id string) (*status.Member, error) {
	var m memberModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "member", id)
	}
	out := m.toDomain()
	return &out, nil
}

// MemberByUser implements store.MemberStore.
func (s *Store) MemberByUser(ctx context.Context, orgID, userID string) (*status.Member, error) {
	var m memberModel
	if err := s.db.WithContext(ctx).Where("organization_id = ? AND user_id = ?", orgID, userID).First(&m).Error; err != nil {
		return nil, notFound(err, "member", userID)
	}
	out := m.toDomain()
	return &out, nil
}

// AddMember implements store.MemberStore.
func (s *Store) AddMember(ctx context.Context, m *status.Member) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireOrg(tx, m.OrganizationID); err != nil {
			return err
		}
		dup, err := exists(tx, &memberModel{}, "organization_id = ? AND user_id = ?", m.OrganizationID, m.UserID)
		if err != nil {
			return err
		}
		if dup {
			return errors.NewAlreadyExistsError("member", m.UserID)
		}
		m.ID = newID(m.ID)
		if m.Role == "" {
			m.Role = status.RoleMember
		}
		m.CreatedAt = s.clock.Stamp()
		m.UpdatedAt = m.CreatedAt
		row := memberFrom(m)
		return tx.Create(&row).Error
	})
}

// UpdateMemberRole implements store.MemberStore.
func (s *Store) UpdateMemberRole(ctx context.Context, id string, role status.Role) (*status.Member, error) {
	var out status.Member
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur memberModel
		if err := tx.Where("id = ?", id).First(&cur).Error; err != nil {
			return notFound(err, "member", id)
		}
		cur.Role = string(role)
		cur.UpdatedAt = s.clock.Stamp()
		if err := tx.Save(&cur).Error; err != nil {
			return err
		}
		out = cur.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TransferOwnership implements store.MemberStore. The demotion is written
// first, so a missing target rolls it back.
func (s *Store) TransferOwnership(ctx context.Context, fromID, toID string) (*status.Member, *status.Member, error) {
	var promoted, demoted *status.Member
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var from memberModel
		if err := tx.Where("id = ?", fromID).First(&from).Error; err != nil {
			return notFound(err, "member", fromID)
		}
		now := s.clock.Stamp()
		if fromID != toID {
			from.Role = string(status.RoleAdmin)
			from.UpdatedAt = now
			if err := tx.Save(&from).Error; err != nil {
				return err
			}
			d := from.toDomain()
			demoted = &d
		}
		var to memberModel
		if err := tx.Where("id = ?", toID).First(&to).Error; err != nil {
			return notFound(err, "member", toID)
		}
		if to.OrganizationID != from.OrganizationID {
			return errors.NewValidationError("memberId", toID, "members belong to different teams")
		}
		to.Role = string(status.RoleOwner)
		to.UpdatedAt = now
		if err := tx.Save(&to).Error; err != nil {
			return err
		}
		p := to.toDomain()
		promoted = &p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return promoted, demoted, nil
}

// RemoveMember implements store.MemberStore.
func (s *Store) RemoveMember(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&memberModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.NewNotFoundError("member", id)
	}
	return nil
}

func dedupe(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// gormLogger routes gorm's logging through zerolog.
type gormLogger struct {
	logger *zerolog.Logger
	slow   time.Duration
	level  gormlogger.LogLevel
}

func newGormLogger(logger *zerolog.Logger, slow time.Duration) *gormLogger {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &gormLogger{logger: logger, slow: slow, level: gormlogger.Warn}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Info().Msgf(msg, args...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn().Msgf(msg, args...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Error().Msgf(msg, args...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.logger.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query failed")
	case elapsed > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.logger.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
	}
}
