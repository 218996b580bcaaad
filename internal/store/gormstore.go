package store

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tsapi/internal/models"
	"tsapi/pkg/logger"
)

// GormStore is the WAL-backed SQLite Store. The pragma string mirrors the
// teacher's internal/database/database.go tuning: WAL journal mode for
// reader/writer concurrency, NORMAL synchronous as the safety/throughput
// balance, and a busy timeout so concurrent Scheduler/Worker/HTTP writers
// queue instead of failing with SQLITE_BUSY.
type GormStore struct {
	db *gorm.DB

	// mu serialises queue push/pop against their Store reflection so a
	// push and its durable record can never diverge.
	mu sync.Mutex
}

// Open creates (or opens) the database at path and migrates the schema.
func Open(path string) (*GormStore, error) {
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?"+
		"_pragma=foreign_keys(1)&"+
		"_pragma=journal_mode(WAL)&"+
		"_pragma=synchronous(NORMAL)&"+
		"_pragma=busy_timeout(30000)",
		path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&models.Module{}, &models.Entry{}, &models.QueueRef{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)").Error; err != nil {
		return nil, err
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_jobs_priority ON jobs(priority)").Error; err != nil {
		return nil, err
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_queue_priority_added ON queue(priority, added_at)").Error; err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

func (s *GormStore) AddModule(m *models.Module) error {
	if err := s.db.Create(m).Error; err != nil {
		return fmt.Errorf("add module: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateModule(uid string, fields map[string]any) error {
	for k := range fields {
		if !validModuleFields[k] {
			return ErrInvalidField(k)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	res := s.db.Model(&models.Module{}).Where("module_uid = ?", uid).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update module: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound("module " + uid)
	}
	return nil
}

func (s *GormStore) GetModule(uid string) (*models.Module, error) {
	var m models.Module
	if err := s.db.Where("module_uid = ?", uid).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound("module " + uid)
		}
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) ListModules() ([]models.Module, error) {
	var ms []models.Module
	if err := s.db.Find(&ms).Error; err != nil {
		return nil, err
	}
	return ms, nil
}

func (s *GormStore) AddJob(e *models.Entry) error {
	var count int64
	if err := s.db.Model(&models.Entry{}).Where("uid = ?", e.UID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrConflict("job " + e.UID + " already exists")
	}
	if err := s.db.Create(e).Error; err != nil {
		return fmt.Errorf("add job: %w", err)
	}
	return nil
}

func (s *GormStore) LoadJob(uid string) (*models.Entry, error) {
	var e models.Entry
	if err := s.db.Where("uid = ?", uid).First(&e).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound("job " + uid)
		}
		return nil, err
	}
	return &e, nil
}

func (s *GormStore) ExistsJob(uid string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Entry{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) DeleteJob(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_uid = ?", uid).Delete(&models.QueueRef{}).Error; err != nil {
			return err
		}
		res := tx.Where("uid = ?", uid).Delete(&models.Entry{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound("job " + uid)
		}
		return nil
	})
}

func (s *GormStore) UpdateJob(uid string, fields map[string]any) error {
	for k := range fields {
		if !validJobFields[k] {
			return ErrInvalidField(k)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	res := s.db.Model(&models.Entry{}).Where("uid = ?", uid).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound("job " + uid)
	}
	return nil
}

func (s *GormStore) Enqueue(uid string, priority int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.QueueRef
		err := tx.Where("job_uid = ?", uid).First(&existing).Error
		if err == nil {
			return ErrConflict("job " + uid + " already queued")
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		ref := models.QueueRef{JobUID: uid, Priority: priority, AddedAt: time.Now()}
		return tx.Create(&ref).Error
	})
}

func (s *GormStore) RemoveFromQueue(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Where("job_uid = ?", uid).Delete(&models.QueueRef{}).Error
}

func (s *GormStore) LoadAll() (*Snapshot, error) {
	var modulesList []models.Module
	var entries []models.Entry
	var refs []models.QueueRef

	if err := s.db.Find(&modulesList).Error; err != nil {
		return nil, err
	}
	if err := s.db.Find(&entries).Error; err != nil {
		return nil, err
	}
	if err := s.db.Order("priority asc, added_at asc").Find(&refs).Error; err != nil {
		return nil, err
	}

	// Startup reconstruction: any Entry left Processing when the process
	// died comes back as Queued at priority 0, and dangling queue
	// references are logged and dropped rather than failing startup.
	byUID := make(map[string]*models.Entry, len(entries))
	for i := range entries {
		byUID[entries[i].UID] = &entries[i]
	}

	cleanRefs := make([]models.QueueRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := byUID[ref.JobUID]; !ok {
			logger.Warn("dropping dangling queue reference at startup", "job_uid", ref.JobUID)
			_ = s.RemoveFromQueue(ref.JobUID)
			continue
		}
		cleanRefs = append(cleanRefs, ref)
	}

	for i := range entries {
		e := &entries[i]
		if e.Status == models.StatusProcessing {
			logger.Warn("reconstructing in-flight job as requeued", "job_uid", e.UID)
			e.Status = models.StatusQueued
			if err := s.UpdateJob(e.UID, map[string]any{"status": models.StatusQueued}); err != nil {
				return nil, err
			}
			if _, already := findRef(cleanRefs, e.UID); !already {
				if err := s.Enqueue(e.UID, 0); err != nil && !IsConflict(err) {
					return nil, err
				}
				cleanRefs = append(cleanRefs, models.QueueRef{JobUID: e.UID, Priority: 0, AddedAt: time.Now()})
			}
		}
	}

	return &Snapshot{Modules: modulesList, Entries: entries, QueueRefs: cleanRefs}, nil
}

func findRef(refs []models.QueueRef, uid string) (models.QueueRef, bool) {
	for _, r := range refs {
		if r.JobUID == uid {
			return r, true
		}
	}
	return models.QueueRef{}, false
}

// Sync forces a WAL checkpoint. lifecycle.Run calls it once at shutdown;
// nothing calls it on a timer.
func (s *GormStore) Sync() error {
	return s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error
}

func (s *GormStore) Stats() (Stats, error) {
	stats := Stats{ByStatus: map[string]int{}}

	rows, err := s.db.Model(&models.Entry{}).
		Select("status, count(*) as count").
		Group("status").Rows()
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
	}

	var queueLen int64
	if err := s.db.Model(&models.QueueRef{}).Count(&queueLen).Error; err != nil {
		return stats, err
	}
	stats.QueueLength = int(queueLen)

	return stats, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
