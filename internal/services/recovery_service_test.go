package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/models"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/repositories"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/validation"
)

// ---- фейки ----

type fakeUserRepo struct {
	users          map[int]*models.User
	byLogin        map[string]int // "method:value" -> user id
	updatedID      int
	updatedHash    string
	updateCalls    int
	getByLoginErr  error
	updatePassword error
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{
		users:   map[int]*models.User{},
		byLogin: map[string]int{},
	}
	for _, u := range users {
		r.users[u.ID] = u
		r.byLogin["username:"+u.Username] = u.ID
		if u.Email != nil {
			r.byLogin["email:"+*u.Email] = u.ID
		}
		if u.Phone != nil {
			r.byLogin["phone:"+*u.Phone] = u.ID
		}
	}
	return r
}

func (r *fakeUserRepo) GetByLogin(value string, method models.LoginMethod) (*models.User, error) {
	if r.getByLoginErr != nil {
		return nil, r.getByLoginErr
	}
	id, ok := r.byLogin[method.String()+":"+value]
	if !ok {
		return nil, nil
	}
	return r.users[id], nil
}

func (r *fakeUserRepo) GetByID(id int) (*models.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) UpdatePassword(userID int, passwordHash string) error {
	if r.updatePassword != nil {
		return r.updatePassword
	}
	r.updateCalls++
	r.updatedID = userID
	r.updatedHash = passwordHash
	if u, ok := r.users[userID]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

type fakeRecoveryRepo struct {
	byToken   map[string]*models.RecoveryRecord
	nextID    int64
	createErr error
	deleted   []int64
}

func newFakeRecoveryRepo() *fakeRecoveryRepo {
	return &fakeRecoveryRepo{byToken: map[string]*models.RecoveryRecord{}}
}

func (r *fakeRecoveryRepo) Create(rec *models.RecoveryRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, exists := r.byToken[rec.Token]; exists {
		return repositories.ErrDuplicateToken
	}
	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = time.Now()
	r.byToken[rec.Token] = rec
	return nil
}

func (r *fakeRecoveryRepo) GetByToken(token string) (*models.RecoveryRecord, error) {
	rec, ok := r.byToken[token]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRecoveryRepo) IncrementAttempts(id int64) (int, error) {
	for _, rec := range r.byToken {
		if rec.ID == id {
			rec.Attempts++
			return rec.Attempts, nil
		}
	}
	return 0, nil
}

func (r *fakeRecoveryRepo) Delete(id int64) error {
	for token, rec := range r.byToken {
		if rec.ID == id {
			delete(r.byToken, token)
			r.deleted = append(r.deleted, id)
			return nil
		}
	}
	return nil
}

func (r *fakeRecoveryRepo) only(t *testing.T) *models.RecoveryRecord {
	t.Helper()
	require.Len(t, r.byToken, 1)
	for _, rec := range r.byToken {
		return rec
	}
	return nil
}

type sentCode struct {
	userID int
	code   string
	email  *string
	phone  *string
}

type fakeNotifier struct {
	ok   bool
	sent []sentCode
}

func (n *fakeNotifier) SendRecoveryCode(user *models.User, code string, email, phone *string) bool {
	n.sent = append(n.sent, sentCode{userID: user.ID, code: code, email: email, phone: phone})
	return n.ok
}

// ---- сборка сервиса под тест ----

func strPtr(s string) *string { return &s }

func defaultTestConfig() RecoveryConfig {
	return RecoveryConfig{
		LoginMethod:             models.LoginMethodUsername,
		CodeLength:              6,
		TokenExpiration:         600 * time.Second,
		MaxAttempts:             5,
		ValidateLoginNotFound:   false,
		ValidateContactMismatch: true,
		ConfirmNewPassword:      false,
	}
}

type testEnv struct {
	svc      *recoveryService
	users    *fakeUserRepo
	repo     *fakeRecoveryRepo
	notifier *fakeNotifier
	now      time.Time
}

func newTestEnv(cfg RecoveryConfig, users ...*models.User) *testEnv {
	env := &testEnv{
		users:    newFakeUserRepo(users...),
		repo:     newFakeRecoveryRepo(),
		notifier: &fakeNotifier{ok: true},
		now:      time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	env.svc = &recoveryService{
		cfg:      cfg,
		users:    env.users,
		repo:     env.repo,
		notifier: env.notifier,
		auth: NewAuthService(validation.PasswordRule{
			MinLength: 8,
			MaxLength: 72,
		}),
		phoneRule: validation.PhoneRule{
			AllowNANP:       true,
			AllowE164:       true,
			AllowFormatting: true,
		},
		now: func() time.Time { return env.now },
	}
	return env
}

func testUser() *models.User {
	return &models.User{
		ID:       7,
		Username: "alice",
		Email:    strPtr("alice@example.com"),
		Phone:    strPtr("+15552345678"),
	}
}

// ---- request ----

func TestRequestIssuesRecord(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	require.Empty(t, fieldErrs)
	require.NotNil(t, issued)

	rec := env.repo.only(t)
	assert.Equal(t, 7, rec.UserID)
	assert.Equal(t, issued.Token, rec.Token)
	assert.Len(t, rec.Token, 96)
	assert.Len(t, rec.Code, 6)
	assert.Equal(t, 0, rec.Attempts)
	assert.Equal(t, env.now.Add(600*time.Second), rec.ExpirationTime)
	assert.Equal(t, rec.ExpirationTime, issued.ExpirationTime)

	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, rec.Code, env.notifier.sent[0].code)
	require.NotNil(t, env.notifier.sent[0].email)
	assert.Equal(t, "alice@example.com", *env.notifier.sent[0].email)
	assert.Nil(t, env.notifier.sent[0].phone)
}

func TestRequestEmptyLoginValue(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Nil(t, issued)
	assert.Equal(t, FieldErrors{"username": "required"}, fieldErrs)
	assert.Empty(t, env.repo.byToken)
}

func TestRequestUserNotFoundSilent(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "nobody",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	require.Empty(t, fieldErrs)
	require.NotNil(t, issued)

	// выдача поддельная: токен есть, записи нет, доставки нет
	assert.Len(t, issued.Token, 96)
	assert.Equal(t, env.now.Add(600*time.Second), issued.ExpirationTime)
	assert.Empty(t, env.repo.byToken)
	assert.Empty(t, env.notifier.sent)
}

func TestRequestUserNotFoundValidated(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.ValidateLoginNotFound = true
	env := newTestEnv(cfg, testUser())

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "nobody",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	assert.Nil(t, issued)
	assert.Equal(t, "not_found", fieldErrs["username"])
}

func TestRequestNoContactChannels(t *testing.T) {
	u := testUser()
	env := newTestEnv(defaultTestConfig(), u)

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{Username: "alice"})
	require.NoError(t, err)
	assert.Nil(t, issued)
	assert.Equal(t, FieldErrors{"contact": "required"}, fieldErrs)
}

func TestRequestUserWithoutContactInfo(t *testing.T) {
	u := &models.User{ID: 9, Username: "bob"}
	env := newTestEnv(defaultTestConfig(), u)

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "bob",
		Email:    "bob@example.com",
	})
	require.NoError(t, err)
	assert.Nil(t, issued)
	assert.Equal(t, "empty", fieldErrs["contact"])
}

func TestRequestEmailMismatch(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "alice",
		Email:    "other@example.com",
	})
	require.NoError(t, err)
	assert.Nil(t, issued)
	assert.Equal(t, "mismatch", fieldErrs["email"])
	assert.Empty(t, env.repo.byToken)
}

func TestRequestEmailMismatchSuppressed(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.ValidateContactMismatch = false
	env := newTestEnv(cfg, testUser())

	// mismatch подавлен, но непроверенный email обнулён; телефона нет —
	// падаем в ветку поддельной выдачи
	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "alice",
		Email:    "other@example.com",
	})
	require.NoError(t, err)
	require.Empty(t, fieldErrs)
	require.NotNil(t, issued)
	assert.Empty(t, env.repo.byToken)
	assert.Empty(t, env.notifier.sent)
}

func TestRequestInvalidEmail(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())

	_, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "alice",
		Email:    "not-an-email",
	})
	require.NoError(t, err)
	assert.Equal(t, "invalid", fieldErrs["email"])
}

func TestRequestPhoneFormattingNormalized(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "alice",
		Phone:    "+1 (555) 234-5678",
	})
	require.NoError(t, err)
	require.Empty(t, fieldErrs)
	require.NotNil(t, issued)

	require.Len(t, env.notifier.sent, 1)
	require.NotNil(t, env.notifier.sent[0].phone)
	assert.Equal(t, "+15552345678", *env.notifier.sent[0].phone)
}

func TestRequestLoginMethodEmail(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.LoginMethod = models.LoginMethodEmail
	env := newTestEnv(cfg, testUser())

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{Email: "alice@example.com"})
	require.NoError(t, err)
	require.Empty(t, fieldErrs)
	require.NotNil(t, issued)

	rec := env.repo.only(t)
	assert.Equal(t, 7, rec.UserID)
	require.Len(t, env.notifier.sent, 1)
	assert.NotNil(t, env.notifier.sent[0].email)
	assert.Nil(t, env.notifier.sent[0].phone)
}

func TestRequestLoginMethodEmailContactKeyRemapped(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.LoginMethod = models.LoginMethodEmail
	cfg.ValidateLoginNotFound = true
	env := newTestEnv(cfg, testUser())

	// пользователь не найден: contact-ошибка приходит под ключом email,
	// отдельного поля contact в форме нет; при слиянии contact-ошибка
	// перекрывает not_found
	_, fieldErrs, err := env.svc.Request(&RecoveryRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "required", fieldErrs["email"])
	_, hasContact := fieldErrs["contact"]
	assert.False(t, hasContact)
}

func TestRequestInsertConflict(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())
	env.repo.createErr = repositories.ErrDuplicateToken

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	assert.Nil(t, issued)
	assert.Equal(t, FieldErrors{"general": "insert"}, fieldErrs)
	assert.Empty(t, env.notifier.sent)
}

func TestRequestSendFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())
	env.notifier.ok = false

	issued, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	assert.Nil(t, issued)
	assert.Equal(t, FieldErrors{"general": "send"}, fieldErrs)
	// запись не откатывается
	assert.Len(t, env.repo.byToken, 1)
}

func TestRequestRealAndFakedIssuanceSameShape(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())

	real, _, err := env.svc.Request(&RecoveryRequest{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)

	faked, _, err := env.svc.Request(&RecoveryRequest{
		Username: "nobody",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)

	// одинаковая форма: токены одной длины, срок из одного расчёта
	assert.Len(t, faked.Token, len(real.Token))
	assert.Equal(t, real.ExpirationTime, faked.ExpirationTime)
}

func TestRequestCodeLengthFollowsConfig(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.CodeLength = 10
	env := newTestEnv(cfg, testUser())

	_, fieldErrs, err := env.svc.Request(&RecoveryRequest{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	require.Empty(t, fieldErrs)
	assert.Len(t, env.repo.only(t).Code, 10)
}

// ---- confirm ----

func seedRecord(env *testEnv, code string, expires time.Time, attempts int) *models.RecoveryRecord {
	rec := &models.RecoveryRecord{
		ID:             101,
		UserID:         7,
		Token:          "tok-A",
		Code:           code,
		ExpirationTime: expires,
		Attempts:       attempts,
	}
	env.repo.byToken[rec.Token] = rec
	return rec
}

func TestConfirmUnknownToken(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())

	fieldErrs, err := env.svc.Confirm("missing", &RecoveryConfirm{
		Code:     "12345",
		Password: "new-password-1",
	})
	assert.ErrorIs(t, err, ErrRecoveryNotFound)
	assert.Nil(t, fieldErrs)
}

func TestConfirmOrphanedRecordPurged(t *testing.T) {
	env := newTestEnv(defaultTestConfig()) // пользователей нет
	seedRecord(env, "12345", env.now.Add(600*time.Second), 0)

	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
		Code:     "12345",
		Password: "new-password-1",
	})
	assert.ErrorIs(t, err, ErrRecoveryNotFound)
	assert.Nil(t, fieldErrs)
	assert.Empty(t, env.repo.byToken)
	assert.Equal(t, []int64{101}, env.repo.deleted)
}

func TestConfirmExpired(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())
	rec := seedRecord(env, "12345", env.now.Add(-time.Second), 2)

	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
		Code:     "12345",
		Password: "new-password-1",
	})
	assert.ErrorIs(t, err, ErrRecoveryExpired)
	assert.Nil(t, fieldErrs)
	// попытка не тратится, запись не трогаем
	assert.Equal(t, 2, rec.Attempts)
	assert.Len(t, env.repo.byToken, 1)
}

func TestConfirmAttemptsExhausted(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())
	rec := seedRecord(env, "12345", env.now.Add(600*time.Second), 5)

	// даже с верным кодом — отказ без инкремента
	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
		Code:     "12345",
		Password: "new-password-1",
	})
	require.NoError(t, err)
	assert.Equal(t, FieldErrors{"code": "attempts"}, fieldErrs)
	assert.Equal(t, 5, rec.Attempts)
}

func TestConfirmWrongCodeIncrementsAttempts(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())
	rec := seedRecord(env, "12345", env.now.Add(600*time.Second), 0)

	for i := 1; i <= 3; i++ {
		fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
			Code:     "00000",
			Password: "new-password-1",
		})
		require.NoError(t, err)
		assert.Equal(t, FieldErrors{"code": "mismatch"}, fieldErrs)
		assert.Equal(t, i, rec.Attempts)
	}
}

func TestConfirmMissingCodeStillChargesAttempt(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())
	rec := seedRecord(env, "12345", env.now.Add(600*time.Second), 0)

	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
		Password: "new-password-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "required", fieldErrs["code"])
	assert.Equal(t, 1, rec.Attempts)
}

func TestConfirmMissingPassword(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())
	rec := seedRecord(env, "12345", env.now.Add(600*time.Second), 0)

	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{Code: "12345"})
	require.NoError(t, err)
	assert.Equal(t, "required", fieldErrs["password"])
	assert.Equal(t, 1, rec.Attempts)
}

func TestConfirmWeakPassword(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())
	seedRecord(env, "12345", env.now.Add(600*time.Second), 0)

	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
		Code:     "12345",
		Password: "short",
	})
	require.NoError(t, err)
	assert.Equal(t, "min_length", fieldErrs["password"])
}

func TestConfirmPasswordPairMismatch(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.ConfirmNewPassword = true
	env := newTestEnv(cfg, testUser())
	seedRecord(env, "12345", env.now.Add(600*time.Second), 0)

	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
		Code:      "12345",
		Password1: "new-password-1",
		Password2: "other-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "mismatch", fieldErrs["password1"])
}

func TestConfirmPasswordRuleErrorRemappedInConfirmMode(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.ConfirmNewPassword = true
	env := newTestEnv(cfg, testUser())
	seedRecord(env, "12345", env.now.Add(600*time.Second), 0)

	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
		Code:      "12345",
		Password1: "short",
		Password2: "short",
	})
	require.NoError(t, err)
	assert.Equal(t, "min_length", fieldErrs["password1"])
	_, hasPassword := fieldErrs["password"]
	assert.False(t, hasPassword)
}

func TestConfirmSuccess(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())
	seedRecord(env, "12345", env.now.Add(600*time.Second), 1)

	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
		Code:     "12345",
		Password: "new-password-1",
	})
	require.NoError(t, err)
	assert.Empty(t, fieldErrs)

	assert.Equal(t, 7, env.users.updatedID)
	assert.NotEmpty(t, env.users.updatedHash)
	assert.NotEqual(t, "new-password-1", env.users.updatedHash)

	// запись гасится после успешного сброса
	assert.Empty(t, env.repo.byToken)
	assert.Equal(t, []int64{101}, env.repo.deleted)
}

func TestConfirmSuccessWithPasswordPair(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.ConfirmNewPassword = true
	env := newTestEnv(cfg, testUser())
	seedRecord(env, "12345", env.now.Add(600*time.Second), 0)

	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
		Code:      "12345",
		Password1: "new-password-1",
		Password2: "new-password-1",
	})
	require.NoError(t, err)
	assert.Empty(t, fieldErrs)
	assert.Equal(t, 1, env.users.updateCalls)
}

func TestConfirmWrongThenRightCode(t *testing.T) {
	env := newTestEnv(defaultTestConfig(), testUser())
	rec := seedRecord(env, "12345", env.now.Add(600*time.Second), 0)

	fieldErrs, err := env.svc.Confirm("tok-A", &RecoveryConfirm{
		Code:     "00000",
		Password: "new-password-1",
	})
	require.NoError(t, err)
	assert.Equal(t, FieldErrors{"code": "mismatch"}, fieldErrs)
	assert.Equal(t, 1, rec.Attempts)

	fieldErrs, err = env.svc.Confirm("tok-A", &RecoveryConfirm{
		Code:     "12345",
		Password: "new-password-1",
	})
	require.NoError(t, err)
	assert.Empty(t, fieldErrs)
	assert.Equal(t, 7, env.users.updatedID)
}
