package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/memory"
	"trivia-room-service/internal/infra/postgres"
	infraredis "trivia-room-service/internal/infra/redis"
	"trivia-room-service/internal/randomizer"
)

func TestRoomGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.OpenBun(pgURL)
	defer db.Close()
	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	sets, err := memory.DefaultQuestions()
	if err != nil {
		t.Fatalf("default questions: %v", err)
	}
	loader := postgres.NewQuestionLoader(pool)
	if n, err := loader.SeedMissing(ctx, sets); err != nil || n != len(sets) {
		t.Fatalf("seed: n=%d err=%v", n, err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	bank := infraredis.NewQuestionBank(redisClient, loader, 5*time.Minute)
	bus := infraredis.NewBus(redisClient, 32)
	defer bus.Close()

	svc := app.NewRoomService(postgres.NewRoomStore(pool), bank, bus, app.Options{
		MaxSeconds:        30,
		TrustClientTiming: true,
	})

	room, err := svc.CreateRoom(ctx, app.CreateRoomRequest{Difficulty: "medium", MaxPlayers: 4, OrganizerName: "Host"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	events, unsubscribe, err := svc.Subscribe(ctx, room.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	alice, err := svc.Join(ctx, strings.ToLower(room.Code), "Alice", "fox")
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if _, err := svc.Join(ctx, room.Code, " alice ", ""); !errors.Is(err, domain.ErrNameTaken) {
		t.Fatalf("expected name taken, got %v", err)
	}
	if _, err := svc.Start(ctx, room.ID); !errors.Is(err, domain.ErrInsufficientParticipants) {
		t.Fatalf("expected insufficient participants, got %v", err)
	}
	bob, err := svc.Join(ctx, room.Code, "Bob", "owl")
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}

	room, err = svc.Start(ctx, room.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if room.Status != domain.StatusInProgress || room.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected room after start: %+v", room)
	}
	waitForReason(t, events, domain.ReasonStarted)

	set := setFor(t, sets, domain.DifficultyMedium)
	correct, wrong := positions(t, set, room)

	res, err := svc.Submit(ctx, domain.Submission{ParticipantID: alice.ID, QuestionIndex: 0, DisplayPosition: correct, ElapsedSeconds: 5})
	if err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if !res.Correct || res.Points != 833 || res.TotalScore != 833 {
		t.Fatalf("unexpected result for alice: %+v", res)
	}
	if _, err := svc.Submit(ctx, domain.Submission{ParticipantID: alice.ID, QuestionIndex: 0, DisplayPosition: wrong}); !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected duplicate answer, got %v", err)
	}
	if _, err := svc.Advance(ctx, room.ID); !errors.Is(err, domain.ErrAnswersPending) {
		t.Fatalf("expected answers pending, got %v", err)
	}
	if _, err := svc.Submit(ctx, domain.Submission{ParticipantID: bob.ID, QuestionIndex: 0, DisplayPosition: wrong, ElapsedSeconds: 1}); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	room, err = svc.AdvanceFrom(ctx, room.ID, 0)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if room.CurrentQuestionIndex != 1 {
		t.Fatalf("expected index 1, got %d", room.CurrentQuestionIndex)
	}
	if _, err := svc.AdvanceFrom(ctx, room.ID, 0); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected stale advance to fail, got %v", err)
	}
	participants, err := svc.Participants(ctx, room.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	for _, p := range participants {
		if p.HasAnswered() {
			t.Fatalf("pending answer not cleared for %s", p.Name)
		}
	}

	for room.Status == domain.StatusInProgress {
		correct, _ := positions(t, set, room)
		for _, p := range []domain.Participant{alice, bob} {
			if _, err := svc.Submit(ctx, domain.Submission{ParticipantID: p.ID, QuestionIndex: room.CurrentQuestionIndex, DisplayPosition: correct, ElapsedSeconds: 30}); err != nil {
				t.Fatalf("submit %s at %d: %v", p.Name, room.CurrentQuestionIndex, err)
			}
		}
		if room, err = svc.Advance(ctx, room.ID); err != nil {
			t.Fatalf("advance from %d: %v", room.CurrentQuestionIndex, err)
		}
	}
	if room.Status != domain.StatusFinished || room.CurrentQuestionIndex != len(set.Questions)-1 {
		t.Fatalf("unexpected final room: %+v", room)
	}

	standings, err := svc.Standings(ctx, room.ID)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(standings) != 2 || standings[0].ParticipantID != alice.ID || standings[0].Score != 833 {
		t.Fatalf("unexpected standings: %+v", standings)
	}
}

func TestResultLeaderboardEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := postgres.OpenBun(pgURL)
	defer db.Close()
	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := app.NewResultService(postgres.NewResultStore(db), nil)
	for _, r := range []domain.QuizResult{
		{PlayerName: "Ana", Difficulty: domain.DifficultyEasy, CorrectAnswers: 4, TotalQuestions: 5, TotalTimeSeconds: 40},
		{PlayerName: "Luis", Difficulty: domain.DifficultyEasy, CorrectAnswers: 4, TotalQuestions: 5, TotalTimeSeconds: 30},
		{PlayerName: "Eva", Difficulty: domain.DifficultyHard, CorrectAnswers: 5, TotalQuestions: 5, TotalTimeSeconds: 90},
	} {
		if _, err := svc.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.PlayerName, err)
		}
	}

	board, err := svc.Leaderboard(ctx, app.LeaderboardQuery{Difficulty: "easy"})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].PlayerName != "Luis" || board[1].PlayerName != "Ana" {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}

	all, err := svc.Leaderboard(ctx, app.LeaderboardQuery{})
	if err != nil {
		t.Fatalf("leaderboard all: %v", err)
	}
	if len(all) != 3 || all[0].PlayerName != "Eva" {
		t.Fatalf("unexpected overall leaderboard: %+v", all)
	}

	if _, err := svc.Save(ctx, domain.QuizResult{PlayerName: "Ana", Difficulty: domain.DifficultyMedium, CorrectAnswers: 5, TotalQuestions: 5, TotalTimeSeconds: 70}); err != nil {
		t.Fatalf("save ana medium: %v", err)
	}
	best, err := svc.PlayerBest(ctx, "Ana")
	if err != nil {
		t.Fatalf("player best: %v", err)
	}
	if len(best) != 2 || best[0].Difficulty != domain.DifficultyMedium || best[1].Rank != 2 {
		t.Fatalf("unexpected player best: %+v", best)
	}
}

func positions(t *testing.T, set domain.QuestionSet, room domain.Room) (correct, wrong int) {
	t.Helper()
	qid, ok := room.CurrentQuestionID()
	if !ok {
		t.Fatalf("room has no current question")
	}
	q, ok := set.Question(qid)
	if !ok {
		t.Fatalf("question %d not in set", qid)
	}
	order := randomizer.OptionOrderFor(qid, room.Code)
	correct, _ = order.Position(q.CorrectIndex)
	wrong, _ = order.Position((q.CorrectIndex + 1) % domain.OptionCount)
	return correct, wrong
}

func setFor(t *testing.T, sets []domain.QuestionSet, difficulty domain.Difficulty) domain.QuestionSet {
	t.Helper()
	for _, s := range sets {
		if s.Difficulty == difficulty {
			return s
		}
	}
	t.Fatalf("no %s set", difficulty)
	return domain.QuestionSet{}
}

func waitForReason(t *testing.T, events <-chan domain.Event, reason domain.EventReason) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed before %s", reason)
			}
			if ev.Reason == reason {
				return
			}
		case <-timeout:
			t.Fatalf("no %s event within timeout", reason)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
