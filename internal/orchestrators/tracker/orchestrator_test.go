package tracker_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/events"
	eventsmock "github.com/KirkDiggler/rpg-sheet/internal/events/mock"
	"github.com/KirkDiggler/rpg-sheet/internal/orchestrators/tracker"
	mockclock "github.com/KirkDiggler/rpg-sheet/internal/pkg/clock/mock"
	sessionstate "github.com/KirkDiggler/rpg-sheet/internal/repositories/session_state"
	sessionstatemock "github.com/KirkDiggler/rpg-sheet/internal/repositories/session_state/mock"
	"github.com/KirkDiggler/rpg-sheet/internal/services/persistence"
	"github.com/KirkDiggler/rpg-sheet/internal/services/snapshot"
	"github.com/KirkDiggler/rpg-sheet/internal/testutils"
)

const (
	testKey = "test-state"
	testNow = int64(1700000000000)
)

type OrchestratorTestSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	mockRepo  *sessionstatemock.MockRepository
	mockClock *mockclock.MockClock
	doc       *sheet.Document
	bus       *events.Bus
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.mockRepo = sessionstatemock.NewMockRepository(s.ctrl)
	s.mockClock = mockclock.NewMockClock(s.ctrl)
	s.mockClock.EXPECT().Now().Return(time.UnixMilli(testNow)).AnyTimes()
	s.doc = testutils.CreateTestDocument(s.T())
	s.bus = events.NewBus(nil)
}

func (s *OrchestratorTestSuite) newTracker(notifier events.Notifier) tracker.Service {
	saver, err := persistence.NewSaver(&persistence.Config{
		Repository: s.mockRepo,
		Key:        testKey,
	})
	s.Require().NoError(err)

	if notifier == nil {
		notifier = s.bus
	}

	svc, err := tracker.NewOrchestrator(s.ctx, &tracker.Config{
		Document:   s.doc,
		Repository: s.mockRepo,
		Saver:      saver,
		Notifier:   notifier,
		Clock:      s.mockClock,
		Key:        testKey,
	})
	s.Require().NoError(err)
	return svc
}

// newFreshTracker starts from document defaults
func (s *OrchestratorTestSuite) newFreshTracker() tracker.Service {
	s.mockRepo.EXPECT().
		Get(gomock.Any(), &sessionstate.GetInput{Key: testKey}).
		Return(nil, errors.NotFound("not found"))
	return s.newTracker(nil)
}

// expectPuts records every snapshot written to the store
func (s *OrchestratorTestSuite) expectPuts(times int, err error) *[]*sheet.SessionState {
	written := &[]*sheet.SessionState{}
	s.mockRepo.EXPECT().
		Put(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, input *sessionstate.PutInput) (*sessionstate.PutOutput, error) {
			s.Equal(testKey, input.Key)
			state, decodeErr := snapshot.Decode(input.Value)
			s.Require().NoError(decodeErr)
			*written = append(*written, state)
			if err != nil {
				return nil, err
			}
			return &sessionstate.PutOutput{Record: &sessionstate.Record{Key: input.Key, Value: input.Value}}, nil
		}).
		Times(times)
	return written
}

func (s *OrchestratorTestSuite) TestConfigValidation() {
	_, err := tracker.NewOrchestrator(s.ctx, nil)
	s.True(errors.IsInvalidArgument(err))

	_, err = tracker.NewOrchestrator(s.ctx, &tracker.Config{Key: testKey})
	s.True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestStartsFromDefaults() {
	svc := s.newFreshTracker()

	state := svc.GetState(s.ctx)
	expected := s.doc.DefaultState()
	expected.LastUpdated = testNow
	s.Equal(expected, state)
}

func (s *OrchestratorTestSuite) TestLoadRecomputesMaximumHitPoints() {
	stored := s.doc.DefaultState()
	stored.HitPoints = sheet.HitPoints{Maximum: 999, Current: 500}
	stored.LastUpdated = 55
	data, err := snapshot.Encode(stored)
	s.Require().NoError(err)

	s.mockRepo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(&sessionstate.GetOutput{Record: &sessionstate.Record{Key: testKey, Value: data}}, nil)

	svc := s.newTracker(nil)
	state := svc.GetState(s.ctx)

	s.Equal(sheet.HitPoints{Maximum: testutils.TestDocumentMaxHitPoints, Current: testutils.TestDocumentMaxHitPoints}, state.HitPoints)
	s.Equal(int64(55), state.LastUpdated)
}

func (s *OrchestratorTestSuite) TestLoadKeepsStoredProgress() {
	stored := s.doc.DefaultState()
	stored.HitPoints.Current = 20
	stored.SpellSlots["1st"] = sheet.Counter{Total: 4, Used: 3}
	data, err := snapshot.Encode(stored)
	s.Require().NoError(err)

	s.mockRepo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(&sessionstate.GetOutput{Record: &sessionstate.Record{Key: testKey, Value: data}}, nil)

	state := s.newTracker(nil).GetState(s.ctx)
	s.Equal(20, state.HitPoints.Current)
	s.Equal(3, state.SpellSlots["1st"].Used)
}

func (s *OrchestratorTestSuite) TestLoadFallsBackToDefaults() {
	testCases := []struct {
		name   string
		output *sessionstate.GetOutput
		err    error
	}{
		{
			name:   "corrupt snapshot",
			output: &sessionstate.GetOutput{Record: &sessionstate.Record{Key: testKey, Value: []byte("{oops")}},
		},
		{
			name: "store unavailable",
			err:  errors.Unavailable("connection refused"),
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.mockRepo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(tc.output, tc.err)

			state := s.newTracker(nil).GetState(s.ctx)
			s.Equal(testutils.TestDocumentMaxHitPoints, state.HitPoints.Current)
			s.Equal(testNow, state.LastUpdated)
		})
	}
}

func (s *OrchestratorTestSuite) TestPreloadedSnapshotSkipsStore() {
	saver, err := persistence.NewSaver(&persistence.Config{Repository: s.mockRepo, Key: testKey})
	s.Require().NoError(err)

	preloaded := s.doc.DefaultState()
	preloaded.LegendaryResistances.Used = 2

	svc, err := tracker.NewOrchestrator(s.ctx, &tracker.Config{
		Document:  s.doc,
		Saver:     saver,
		Notifier:  s.bus,
		Clock:     s.mockClock,
		Key:       testKey,
		Preloaded: true,
		Snapshot:  preloaded,
	})
	s.Require().NoError(err)
	s.Equal(2, svc.GetState(s.ctx).LegendaryResistances.Used)
}

func (s *OrchestratorTestSuite) TestDamageAndHeal() {
	svc := s.newFreshTracker()
	written := s.expectPuts(2, nil)

	out, err := svc.DamageHitPoints(s.ctx, &tracker.DamageHitPointsInput{Amount: 30})
	s.Require().NoError(err)
	s.True(out.Changed)
	s.Equal(100, out.State.HitPoints.Current)
	s.Equal(testNow+1, out.State.LastUpdated)

	out, err = svc.HealHitPoints(s.ctx, &tracker.HealHitPointsInput{Amount: 1000})
	s.Require().NoError(err)
	s.True(out.Changed)
	s.Equal(testutils.TestDocumentMaxHitPoints, out.State.HitPoints.Current)
	s.Equal(testNow+2, out.State.LastUpdated)

	s.Require().Len(*written, 2)
	s.Equal(100, (*written)[0].HitPoints.Current)
	s.Equal(out.State, (*written)[1])
}

func (s *OrchestratorTestSuite) TestNoOpsDoNotPersistOrNotify() {
	s.mockRepo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.NotFound("not found"))
	// no Put and no Publish expectations: any call fails the test
	notifier := eventsmock.NewMockNotifier(s.ctrl)
	svc := s.newTracker(notifier)
	before := svc.GetState(s.ctx)

	ops := map[string]func() (*tracker.MutationOutput, error){
		"heal at max": func() (*tracker.MutationOutput, error) {
			return svc.HealHitPoints(s.ctx, &tracker.HealHitPointsInput{Amount: 10})
		},
		"negative damage": func() (*tracker.MutationOutput, error) {
			return svc.DamageHitPoints(s.ctx, &tracker.DamageHitPointsInput{Amount: -10})
		},
		"unknown shield": func() (*tracker.MutationOutput, error) {
			return svc.DamageShield(s.ctx, &tracker.DamageShieldInput{ShieldID: "nope", Amount: 5})
		},
		"restore unused slot": func() (*tracker.MutationOutput, error) {
			return svc.RestoreSpellSlot(s.ctx, &tracker.SpellSlotInput{Level: "1st"})
		},
		"unknown slot": func() (*tracker.MutationOutput, error) {
			return svc.UseSpellSlot(s.ctx, &tracker.SpellSlotInput{Level: "99th"})
		},
		"unknown ability": func() (*tracker.MutationOutput, error) {
			return svc.UseLimitedAbility(s.ctx, &tracker.LimitedAbilityInput{Name: "Wild Shape"})
		},
		"restore legendary": func() (*tracker.MutationOutput, error) {
			return svc.RestoreLegendaryResistance(s.ctx)
		},
		"long rest when rested": func() (*tracker.MutationOutput, error) {
			return svc.LongRest(s.ctx)
		},
		"reset when fresh": func() (*tracker.MutationOutput, error) {
			return svc.Reset(s.ctx)
		},
	}

	for name, op := range ops {
		s.Run(name, func() {
			out, err := op()
			s.Require().NoError(err)
			s.False(out.Changed)
			s.Equal(before, out.State)
		})
	}
}

func (s *OrchestratorTestSuite) TestNilInputs() {
	svc := s.newFreshTracker()

	_, err := svc.DamageHitPoints(s.ctx, nil)
	s.True(errors.IsInvalidArgument(err))
	_, err = svc.HealShield(s.ctx, nil)
	s.True(errors.IsInvalidArgument(err))
	_, err = svc.UseSpellSlot(s.ctx, nil)
	s.True(errors.IsInvalidArgument(err))
	_, err = svc.UseLimitedAbility(s.ctx, nil)
	s.True(errors.IsInvalidArgument(err))
	_, err = svc.Import(s.ctx, nil)
	s.True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestShields() {
	svc := s.newFreshTracker()
	s.expectPuts(3, nil)

	out, err := svc.DamageShield(s.ctx, &tracker.DamageShieldInput{ShieldID: "stoneShield", Amount: 80})
	s.Require().NoError(err)
	s.True(out.Changed)
	s.Equal(0, out.State.Shields["stoneShield"].Current)

	// stone shield cannot be healed
	out, err = svc.HealShield(s.ctx, &tracker.HealShieldInput{ShieldID: "stoneShield", Amount: 10})
	s.Require().NoError(err)
	s.False(out.Changed)
	s.Equal(0, out.State.Shields["stoneShield"].Current)

	out, err = svc.DamageShield(s.ctx, &tracker.DamageShieldInput{ShieldID: "wardShield", Amount: 20})
	s.Require().NoError(err)
	s.Equal(10, out.State.Shields["wardShield"].Current)

	out, err = svc.HealShield(s.ctx, &tracker.HealShieldInput{ShieldID: "wardShield", Amount: 100})
	s.Require().NoError(err)
	s.True(out.Changed)
	s.Equal(30, out.State.Shields["wardShield"].Current)
}

func (s *OrchestratorTestSuite) TestSpellSlotsAndAbilities() {
	svc := s.newFreshTracker()
	s.expectPuts(6, nil)

	for i := 0; i < 4; i++ {
		_, err := svc.UseSpellSlot(s.ctx, &tracker.SpellSlotInput{Level: "1st"})
		s.Require().NoError(err)
	}
	out, err := svc.UseSpellSlot(s.ctx, &tracker.SpellSlotInput{Level: "1st"})
	s.Require().NoError(err)
	s.False(out.Changed)
	s.Equal(4, out.State.SpellSlots["1st"].Used)

	out, err = svc.RestoreSpellSlot(s.ctx, &tracker.SpellSlotInput{Level: "1st"})
	s.Require().NoError(err)
	s.Equal(3, out.State.SpellSlots["1st"].Used)

	out, err = svc.UseLimitedAbility(s.ctx, &tracker.LimitedAbilityInput{Name: "Second Wind"})
	s.Require().NoError(err)
	s.True(out.Changed)
	s.Equal(1, out.State.LimitedUseAbilities["Second Wind"].Used)

	out, err = svc.UseLimitedAbility(s.ctx, &tracker.LimitedAbilityInput{Name: "Second Wind"})
	s.Require().NoError(err)
	s.False(out.Changed)
}

func (s *OrchestratorTestSuite) TestLongRestLeavesShields() {
	svc := s.newFreshTracker()
	s.expectPuts(6, nil)

	_, _ = svc.DamageHitPoints(s.ctx, &tracker.DamageHitPointsInput{Amount: 100})
	_, _ = svc.DamageShield(s.ctx, &tracker.DamageShieldInput{ShieldID: "wardShield", Amount: 12})
	_, _ = svc.UseSpellSlot(s.ctx, &tracker.SpellSlotInput{Level: "2nd"})
	_, _ = svc.UseLimitedAbility(s.ctx, &tracker.LimitedAbilityInput{Name: "Action Surge"})
	_, _ = svc.UseLegendaryResistance(s.ctx)

	out, err := svc.LongRest(s.ctx)
	s.Require().NoError(err)
	s.True(out.Changed)

	s.Equal(testutils.TestDocumentMaxHitPoints, out.State.HitPoints.Current)
	s.Equal(0, out.State.SpellSlots["2nd"].Used)
	s.Equal(0, out.State.LimitedUseAbilities["Action Surge"].Used)
	s.Equal(0, out.State.LegendaryResistances.Used)
	s.Equal(18, out.State.Shields["wardShield"].Current)
}

func (s *OrchestratorTestSuite) TestReset() {
	svc := s.newFreshTracker()
	s.expectPuts(3, nil)

	_, _ = svc.DamageShield(s.ctx, &tracker.DamageShieldInput{ShieldID: "stoneShield", Amount: 12})
	_, _ = svc.UseLegendaryResistance(s.ctx)

	out, err := svc.Reset(s.ctx)
	s.Require().NoError(err)
	s.True(out.Changed)
	s.Equal(50, out.State.Shields["stoneShield"].Current)
	s.Equal(0, out.State.LegendaryResistances.Used)
	s.Equal(testNow+3, out.State.LastUpdated)
}

func (s *OrchestratorTestSuite) TestPersistenceFailureKeepsChange() {
	svc := s.newFreshTracker()
	s.expectPuts(1, errors.Unavailable("disk full"))

	out, err := svc.DamageHitPoints(s.ctx, &tracker.DamageHitPointsInput{Amount: 5})
	s.Require().NoError(err)
	s.True(out.Changed)
	s.Equal(125, svc.GetState(s.ctx).HitPoints.Current)
}

func (s *OrchestratorTestSuite) TestListenersSeeEveryChange() {
	svc := s.newFreshTracker()
	s.expectPuts(2, nil)

	var seen []int
	id := svc.Subscribe(func(_ context.Context, state *sheet.SessionState) error {
		seen = append(seen, state.HitPoints.Current)
		// listeners may read back
		s.Equal(state.HitPoints.Current, svc.GetState(s.ctx).HitPoints.Current)
		return nil
	})
	svc.Subscribe(func(context.Context, *sheet.SessionState) error {
		return stderrors.New("listener failure")
	})

	_, _ = svc.DamageHitPoints(s.ctx, &tracker.DamageHitPointsInput{Amount: 10})
	_, _ = svc.HealHitPoints(s.ctx, &tracker.HealHitPointsInput{Amount: 10}) // heals back to max
	_, _ = svc.HealHitPoints(s.ctx, &tracker.HealHitPointsInput{Amount: 10}) // no-op

	s.Equal([]int{120, 130}, seen)
	s.Require().NoError(svc.Unsubscribe(id))
	s.True(errors.IsNotFound(svc.Unsubscribe(id)))
}

func (s *OrchestratorTestSuite) TestConcurrentMutationsAreOrdered() {
	svc := s.newFreshTracker()
	s.expectPuts(50, nil)

	var mu sync.Mutex
	var stamps []int64
	svc.Subscribe(func(_ context.Context, state *sheet.SessionState) error {
		mu.Lock()
		stamps = append(stamps, state.LastUpdated)
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.DamageHitPoints(s.ctx, &tracker.DamageHitPointsInput{Amount: 1})
		}()
	}
	wg.Wait()

	s.Equal(testutils.TestDocumentMaxHitPoints-50, svc.GetState(s.ctx).HitPoints.Current)
	s.Require().Len(stamps, 50)
	for i := 1; i < len(stamps); i++ {
		s.Greater(stamps[i], stamps[i-1])
	}
}

func (s *OrchestratorTestSuite) TestExportImport() {
	svc := s.newFreshTracker()
	s.expectPuts(3, nil)

	_, _ = svc.DamageHitPoints(s.ctx, &tracker.DamageHitPointsInput{Amount: 7})
	_, _ = svc.UseSpellSlot(s.ctx, &tracker.SpellSlotInput{Level: "10th"})

	exported, err := svc.Export(s.ctx)
	s.Require().NoError(err)
	saved := svc.GetState(s.ctx)

	_, _ = svc.LongRest(s.ctx)

	notified := 0
	svc.Subscribe(func(context.Context, *sheet.SessionState) error {
		notified++
		return nil
	})

	s.expectPuts(1, nil)
	out, err := svc.Import(s.ctx, &tracker.ImportInput{Data: exported.Data})
	s.Require().NoError(err)
	s.True(out.Changed)
	s.Equal(1, notified)

	s.Equal(saved.HitPoints, out.State.HitPoints)
	s.Equal(saved.SpellSlots, out.State.SpellSlots)
	s.Equal(saved.Shields, out.State.Shields)
	s.Greater(out.State.LastUpdated, saved.LastUpdated+1)
}

func (s *OrchestratorTestSuite) TestImportInvalidLeavesState() {
	svc := s.newFreshTracker()
	before := svc.GetState(s.ctx)

	_, err := svc.Import(s.ctx, &tracker.ImportInput{Data: []byte(`{"character": {"name": "x"}}`)})
	s.True(errors.IsInvalidArgument(err))

	_, err = svc.Import(s.ctx, &tracker.ImportInput{Data: []byte(`not json`)})
	s.True(errors.IsInvalidArgument(err))

	s.Equal(before, svc.GetState(s.ctx))
}

func (s *OrchestratorTestSuite) TestCloseFlushesPending() {
	s.mockRepo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.NotFound("not found"))
	saver, err := persistence.NewSaver(&persistence.Config{
		Repository: s.mockRepo,
		Key:        testKey,
		Delay:      time.Hour,
	})
	s.Require().NoError(err)

	svc, err := tracker.NewOrchestrator(s.ctx, &tracker.Config{
		Document:   s.doc,
		Repository: s.mockRepo,
		Saver:      saver,
		Notifier:   s.bus,
		Clock:      s.mockClock,
		Key:        testKey,
	})
	s.Require().NoError(err)

	_, _ = svc.DamageHitPoints(s.ctx, &tracker.DamageHitPointsInput{Amount: 1})
	_, _ = svc.DamageHitPoints(s.ctx, &tracker.DamageHitPointsInput{Amount: 1})

	written := s.expectPuts(1, nil)
	s.Require().NoError(svc.Close(s.ctx))
	s.Require().Len(*written, 1)
	s.Equal(testutils.TestDocumentMaxHitPoints-2, (*written)[0].HitPoints.Current)
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}
