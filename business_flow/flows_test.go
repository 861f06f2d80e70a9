package businessflow

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/tmcarr/heimdall/app/services"
	"github.com/tmcarr/heimdall/models"
	testingutil "github.com/tmcarr/heimdall/testing"
)

// In-memory repository fakes shared by the flow tests.

type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[string]*models.Member

	testModes  map[string]bool
	loginCodes map[string]string
	outcomes   []outcomeCall
}

type outcomeCall struct {
	phone  string
	status models.DeliveryStatus
}

func newFakeMemberRepo(members ...*models.Member) *fakeMemberRepo {
	r := &fakeMemberRepo{
		members:    make(map[string]*models.Member),
		testModes:  make(map[string]bool),
		loginCodes: make(map[string]string),
	}
	for _, m := range members {
		r.members[m.Phone] = m
	}
	return r
}

func (r *fakeMemberRepo) ByID(context.Context, uint) (*models.Member, error) { return nil, nil }
func (r *fakeMemberRepo) ByFilter(context.Context, models.MemberFilter, string, int, int) ([]*models.Member, error) {
	return nil, nil
}
func (r *fakeMemberRepo) Save(_ context.Context, m *models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.Phone] = m
	return nil
}
func (r *fakeMemberRepo) SaveBatch(ctx context.Context, ms []*models.Member) error {
	for _, m := range ms {
		if err := r.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeMemberRepo) ByPhone(_ context.Context, phone string) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[phone], nil
}

func (r *fakeMemberRepo) ListAll(context.Context) ([]*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Member
	for _, m := range r.members {
		out = append(out, m)
	}
	return out, nil
}

func (r *fakeMemberRepo) ActiveInDepartment(_ context.Context, department string) ([]*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Member
	for _, m := range r.members {
		if m.IsActiveIn(department) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMemberRepo) Activate(_ context.Context, phone, department string) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[phone]
	if !ok {
		return nil, nil
	}
	ms, ok := m.Departments[department]
	if !ok {
		return nil, nil
	}
	ms.Active = true
	m.Departments[department] = ms
	m.PendingLoginCode = nil
	return m, nil
}

func (r *fakeMemberRepo) SetTestMode(_ context.Context, phone string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.testModes[phone] = enabled
	if m, ok := r.members[phone]; ok {
		m.TestMode = &enabled
	}
	return nil
}

func (r *fakeMemberRepo) SetPendingLoginCode(_ context.Context, phone, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loginCodes[phone] = code
	return nil
}

func (r *fakeMemberRepo) ApplyDeliveryOutcome(_ context.Context, phone string, status models.DeliveryStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcomeCall{phone: phone, status: status})
	m, ok := r.members[phone]
	if !ok {
		return 0, nil
	}
	switch {
	case status == models.DeliveryStatusDelivered:
		m.FailCount = 0
	case status == models.DeliveryStatusUndelivered && m.LastStatus != nil && *m.LastStatus == models.DeliveryStatusUndelivered:
		m.FailCount++
	case status == models.DeliveryStatusUndelivered:
		m.FailCount = 1
	}
	s := status
	m.LastStatus = &s
	return m.FailCount, nil
}

type fakeMessageRepo struct {
	mu      sync.Mutex
	records map[int64]*models.MessageRecord
	marks   []appendedMark
}

type appendedMark struct {
	key    int64
	status models.DeliveryStatus
	mark   models.DeliveryMark
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{records: make(map[int64]*models.MessageRecord)}
}

func (r *fakeMessageRepo) ByID(context.Context, uint) (*models.MessageRecord, error) {
	return nil, nil
}
func (r *fakeMessageRepo) ByFilter(context.Context, models.MessageRecordFilter, string, int, int) ([]*models.MessageRecord, error) {
	return nil, nil
}
func (r *fakeMessageRepo) Save(_ context.Context, rec *models.MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.MessageKey] = rec
	return nil
}
func (r *fakeMessageRepo) SaveBatch(ctx context.Context, recs []*models.MessageRecord) error {
	for _, rec := range recs {
		if err := r.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeMessageRepo) ByKey(_ context.Context, key int64) (*models.MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[key], nil
}

func (r *fakeMessageRepo) LatestByFileKey(_ context.Context, fileKey string) (*models.MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.MessageRecord
	for _, rec := range r.records {
		if rec.FileKey == nil || *rec.FileKey != fileKey {
			continue
		}
		if latest == nil || rec.MessageKey > latest.MessageKey {
			latest = rec
		}
	}
	return latest, nil
}

func (r *fakeMessageRepo) SetRecord(_ context.Context, rec *models.MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.MessageKey] = rec
	return nil
}

func (r *fakeMessageRepo) AppendOutcome(_ context.Context, key int64, status models.DeliveryStatus, mark models.DeliveryMark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks = append(r.marks, appendedMark{key: key, status: status, mark: mark})
	return nil
}

func (r *fakeMessageRepo) recordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *fakeMessageRepo) onlyRecord() *models.MessageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		return rec
	}
	return nil
}

type staticSecretSource struct {
	data []byte
}

func (s *staticSecretSource) Fetch(context.Context) ([]byte, error) {
	return s.data, nil
}

func testDirectory(blob []byte) *services.Directory {
	return services.NewDirectory(&staticSecretSource{data: blob}, "district-page")
}

func newSampleDirectory() *services.Directory {
	return testDirectory(testingutil.SampleDirectoryJSON())
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
