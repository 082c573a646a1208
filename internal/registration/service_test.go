// AngelaMos | 2026
// service_test.go

package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/consultancy-api/internal/core"
)

// memoryRepository mirrors the database semantics the service relies on:
// the identity/family unique constraint and the conditional status update.
type memoryRepository struct {
	mu   sync.Mutex
	rows map[string]*Registration
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{rows: map[string]*Registration{}}
}

func (m *memoryRepository) Create(_ context.Context, reg *Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.IdentityID == reg.IdentityID && row.Family == reg.Family {
			return fmt.Errorf("create registration: %w", core.ErrDuplicateKey)
		}
	}
	stored := *reg
	m.rows[reg.ID] = &stored
	return nil
}

func (m *memoryRepository) GetByID(_ context.Context, id string) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("get registration: %w", core.ErrNotFound)
	}
	out := *row
	return &out, nil
}

func (m *memoryRepository) GetByIdentityAndFamily(
	_ context.Context,
	identityID string,
	family Family,
) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.IdentityID == identityID && row.Family == family {
			out := *row
			return &out, nil
		}
	}
	return nil, fmt.Errorf("get registration: %w", core.ErrNotFound)
}

func (m *memoryRepository) List(_ context.Context, params ListParams) ([]Registration, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Registration{}
	for _, row := range m.rows {
		if row.Family != params.Family {
			continue
		}
		if params.IdentityID != "" && row.IdentityID != params.IdentityID {
			continue
		}
		out = append(out, *row)
	}
	return out, len(out), nil
}

func (m *memoryRepository) ListByIdentity(_ context.Context, identityID string) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Registration{}
	for _, row := range m.rows {
		if row.IdentityID == identityID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memoryRepository) UpdateAttributes(_ context.Context, id string, attrs core.JSONB) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return core.ErrNotFound
	}
	row.Attributes = attrs
	return nil
}

func (m *memoryRepository) Apply(_ context.Context, id string, mut Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("apply registration change: %w", core.ErrNotFound)
	}
	if mut.Status != nil && !row.Status.CanTransition(*mut.Status) {
		return ErrInvalidTransition
	}

	if mut.Status != nil {
		row.Status = *mut.Status
	}
	if mut.PaymentStatus != nil {
		row.PaymentStatus = *mut.PaymentStatus
	}
	if mut.SetInstructor {
		row.InstructorID = mut.InstructorID
	}
	return nil
}

func (m *memoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryRepository) HasInstructorAssignment(
	_ context.Context,
	identityID, instructorID string,
) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.IdentityID == identityID && row.InstructorID != nil &&
			*row.InstructorID == instructorID && row.Family.HasInstructor() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepository) CountByFamily(_ context.Context) ([]FamilyCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[Family]*FamilyCount{}
	for _, row := range m.rows {
		c, ok := counts[row.Family]
		if !ok {
			c = &FamilyCount{Family: row.Family}
			counts[row.Family] = c
		}
		c.Total++
		switch row.Status {
		case StatusPending:
			c.Pending++
		case StatusAccepted:
			c.Accepted++
		case StatusRejected:
			c.Rejected++
		}
		if row.PaymentStatus == PaymentPaid {
			c.Paid++
		}
	}

	out := []FamilyCount{}
	for _, c := range counts {
		out = append(out, *c)
	}
	return out, nil
}

type knownInstructors map[string]bool

func (k knownInstructors) Exists(_ context.Context, id string) (bool, error) {
	return k[id], nil
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Save(
	_ context.Context,
	key string,
	r io.Reader,
	_ int64,
	_ string,
) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return key, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }

const instructorID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"

type fixture struct {
	svc   *Service
	repo  *memoryRepository
	store *memoryStore
}

func newFixture() *fixture {
	f := &fixture{repo: newMemoryRepository(), store: newMemoryStore()}
	f.svc = NewService(
		f.repo,
		knownInstructors{instructorID: true},
		f.store,
		testCatalog(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

var (
	alice = Actor{IdentityID: "identity-alice"}
	bob   = Actor{IdentityID: "identity-bob"}
	admin = Actor{IdentityID: "identity-admin", IsAdmin: true}
)

func createReq(f Family) CreateRequest {
	return CreateRequest{Attributes: validAttributes(f)}
}

func TestCreateStartsPendingUnpaid(t *testing.T) {
	f := newFixture()

	reg, err := f.svc.Create(context.Background(), alice, FamilyTutee, createReq(FamilyTutee), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, reg.Status)
	assert.Equal(t, PaymentUnpaid, reg.PaymentStatus)
	assert.Equal(t, alice.IdentityID, reg.IdentityID)
	assert.Nil(t, reg.InstructorID)
}

func TestCreateOncePerFamily(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, alice, FamilyTraining, createReq(FamilyTraining), nil)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, alice, FamilyTraining, createReq(FamilyTraining), nil)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = f.svc.Create(ctx, alice, FamilyResearch, createReq(FamilyResearch), nil)
	assert.NoError(t, err)

	_, err = f.svc.Create(ctx, bob, FamilyTraining, createReq(FamilyTraining), nil)
	assert.NoError(t, err)
}

func TestCreateConcurrentDuplicates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Create(ctx, alice, FamilyTutee, createReq(FamilyTutee), nil)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
	}
	assert.Equal(t, 1, succeeded)
}

func TestCreateInstructorChecks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	known := instructorID
	unknown := "00000000-0000-4000-8000-000000000000"
	bad := "not-a-uuid"

	_, err := f.svc.Create(ctx, alice, FamilyTutor, CreateRequest{
		InstructorID: &known,
		Attributes:   validAttributes(FamilyTutor),
	}, nil)
	assert.ErrorIs(t, err, ErrNoInstructorSlot)

	_, err = f.svc.Create(ctx, alice, FamilyTraining, CreateRequest{
		InstructorID: &unknown,
		Attributes:   validAttributes(FamilyTraining),
	}, nil)
	assert.ErrorIs(t, err, ErrInstructorNotFound)

	_, err = f.svc.Create(ctx, alice, FamilyTraining, CreateRequest{
		InstructorID: &bad,
		Attributes:   validAttributes(FamilyTraining),
	}, nil)
	assert.Contains(t, fieldsOf(t, err), "instructor_id")

	reg, err := f.svc.Create(ctx, alice, FamilyTraining, CreateRequest{
		InstructorID: &known,
		Attributes:   validAttributes(FamilyTraining),
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, reg.InstructorID)
	assert.Equal(t, known, *reg.InstructorID)
}

func tutorCVPath(t *testing.T, reg *Registration) string {
	t.Helper()

	var attrs TutorAttributes
	require.NoError(t, json.Unmarshal(reg.Attributes, &attrs))
	return attrs.CVPath
}

func TestCreateTutorStoresCV(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, alice, FamilyTutor, createReq(FamilyTutor), &Upload{
		Filename: "resume.PDF",
		Size:     4,
		Reader:   bytes.NewReader([]byte("%PDF")),
	})
	require.NoError(t, err)

	path := tutorCVPath(t, reg)
	assert.True(t, strings.HasPrefix(path, "cv/tutor/"))
	assert.True(t, strings.HasSuffix(path, ".pdf"))
	assert.Equal(t, []byte("%PDF"), f.store.objects[path])

	_, err = f.svc.Create(ctx, bob, FamilyTutor, createReq(FamilyTutor), &Upload{
		Filename: "resume.exe",
		Reader:   strings.NewReader("MZ"),
	})
	assert.Contains(t, fieldsOf(t, err), "cv")
}

func TestCreateIgnoresClientCVPath(t *testing.T) {
	f := newFixture()

	raw := strings.Replace(tutorJSON, `"qualification"`, `"cv_path": "../../etc/passwd", "qualification"`, 1)
	reg, err := f.svc.Create(context.Background(), alice, FamilyTutor, CreateRequest{
		Attributes: json.RawMessage(raw),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, tutorCVPath(t, reg))
}

func TestUpdateProfileKeepsCV(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, alice, FamilyTutor, createReq(FamilyTutor), &Upload{
		Filename: "cv.docx",
		Reader:   strings.NewReader("doc"),
	})
	require.NoError(t, err)
	path := tutorCVPath(t, reg)

	updated := strings.Replace(tutorJSON, `"years_experience": 4`, `"years_experience": 5`, 1)
	reg, err = f.svc.UpdateProfile(ctx, alice, FamilyTutor, reg.ID, UpdateProfileRequest{
		Attributes: json.RawMessage(updated),
	})
	require.NoError(t, err)

	var attrs TutorAttributes
	require.NoError(t, json.Unmarshal(reg.Attributes, &attrs))
	assert.Equal(t, 5, attrs.YearsExperience)
	assert.Equal(t, path, attrs.CVPath)
}

func TestGetOwnership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, alice, FamilyTutee, createReq(FamilyTutee), nil)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, alice, FamilyTutee, reg.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, admin, FamilyTutee, reg.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, bob, FamilyTutee, reg.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = f.svc.Get(ctx, alice, FamilyTutor, reg.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.UpdateProfile(ctx, bob, FamilyTutee, reg.ID, UpdateProfileRequest{
		Attributes: validAttributes(FamilyTutee),
	})
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestListRestrictsNonAdmins(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, alice, FamilyTraining, createReq(FamilyTraining), nil)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, bob, FamilyTraining, createReq(FamilyTraining), nil)
	require.NoError(t, err)

	rows, total, err := f.svc.List(ctx, alice, ListParams{Family: FamilyTraining, IdentityID: bob.IdentityID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, alice.IdentityID, rows[0].IdentityID)

	_, total, err = f.svc.List(ctx, admin, ListParams{Family: FamilyTraining})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestDecisionsAreIdempotentAndFinal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, alice, FamilyResearch, createReq(FamilyResearch), nil)
	require.NoError(t, err)

	accepted, err := f.svc.Accept(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)

	again, err := f.svc.Accept(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, again.Status)

	_, err = f.svc.Reject(ctx, reg.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	current, err := f.svc.Get(ctx, admin, FamilyResearch, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, current.Status)

	_, err = f.svc.Accept(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSetPaymentToggles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, alice, FamilyEntrepreneurship, createReq(FamilyEntrepreneurship), nil)
	require.NoError(t, err)

	paid, err := f.svc.SetPayment(ctx, reg.ID, PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, StatusPending, paid.Status)

	unpaid, err := f.svc.SetPayment(ctx, reg.ID, PaymentUnpaid)
	require.NoError(t, err)
	assert.Equal(t, PaymentUnpaid, unpaid.PaymentStatus)

	_, err = f.svc.SetPayment(ctx, reg.ID, "refunded")
	assert.Contains(t, fieldsOf(t, err), "payment_status")
}

func TestAdminUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, alice, FamilyTraining, createReq(FamilyTraining), nil)
	require.NoError(t, err)

	_, err = f.svc.AdminUpdate(ctx, reg.ID, Mutation{})
	require.Error(t, err)

	known := instructorID
	accepted := StatusAccepted
	paid := PaymentPaid
	updated, err := f.svc.AdminUpdate(ctx, reg.ID, Mutation{
		Status:        &accepted,
		PaymentStatus: &paid,
		SetInstructor: true,
		InstructorID:  &known,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, updated.Status)
	assert.Equal(t, PaymentPaid, updated.PaymentStatus)
	require.NotNil(t, updated.InstructorID)

	cleared, err := f.svc.AdminUpdate(ctx, reg.ID, Mutation{SetInstructor: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.InstructorID)

	unknown := "00000000-0000-4000-8000-000000000000"
	_, err = f.svc.AdminUpdate(ctx, reg.ID, Mutation{SetInstructor: true, InstructorID: &unknown})
	assert.ErrorIs(t, err, ErrInstructorNotFound)
}

func TestDeleteRemovesCV(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, alice, FamilyTutor, createReq(FamilyTutor), &Upload{
		Filename: "cv.pdf",
		Reader:   strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	require.Len(t, f.store.objects, 1)

	require.NoError(t, f.svc.Delete(ctx, reg.ID))
	assert.Empty(t, f.store.objects)

	_, err = f.svc.Get(ctx, admin, FamilyTutor, reg.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.Create(ctx, alice, FamilyTutor, createReq(FamilyTutor), nil)
	assert.NoError(t, err)
}

func TestCountByFamilyReportsEveryFamily(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, alice, FamilyTutee, createReq(FamilyTutee), nil)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, bob, FamilyTutee, createReq(FamilyTutee), nil)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, reg.ID)
	require.NoError(t, err)

	counts, err := f.svc.CountByFamily(ctx)
	require.NoError(t, err)
	require.Len(t, counts, len(Families()))

	for i, c := range counts {
		assert.Equal(t, Families()[i], c.Family)
		if c.Family == FamilyTutee {
			assert.Equal(t, 2, c.Total)
			assert.Equal(t, 1, c.Accepted)
			assert.Equal(t, 1, c.Pending)
			continue
		}
		assert.Zero(t, c.Total)
	}
}

func TestHasInstructorAssignment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	known := instructorID
	_, err := f.svc.Create(ctx, alice, FamilyResearch, CreateRequest{
		InstructorID: &known,
		Attributes:   validAttributes(FamilyResearch),
	}, nil)
	require.NoError(t, err)

	ok, err := f.svc.HasInstructorAssignment(ctx, alice.IdentityID, instructorID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.HasInstructorAssignment(ctx, bob.IdentityID, instructorID)
	require.NoError(t, err)
	assert.False(t, ok)
}

type trackedFile struct {
	io.Reader
	closed bool
}

func (f *trackedFile) Close() error {
	f.closed = true
	return nil
}

func TestUploadCloseReleasesFile(t *testing.T) {
	file := &trackedFile{Reader: strings.NewReader("%PDF")}
	upload := &Upload{Filename: "cv.pdf", Size: 4, Reader: file}

	require.NoError(t, upload.Close())
	assert.True(t, file.closed)

	plain := &Upload{Filename: "cv.pdf", Reader: strings.NewReader("%PDF")}
	assert.NoError(t, plain.Close())
}
