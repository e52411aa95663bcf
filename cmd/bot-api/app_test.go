package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/api/adminapi"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/broker/messages"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier/fake"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/conversation"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/notify"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/storage/memtracking"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) Send(ctx context.Context, to models.UserID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

const textWebhook = `{"object":"whatsapp_business_account","entry":[{"id":"W","changes":[{"field":"messages","value":{"messages":[
 {"from":"919000000001","id":"wamid.A","timestamp":"1700000000","type":"text","text":{"body":"track"}}]}}]}]}`

type testEnv struct {
	st       *memtracking.Storage
	sender   *recordingSender
	httpAddr string
	grpcAddr string
	cancel   context.CancelFunc
	errCh    chan error
}

func startBotAPI(t *testing.T, appSecret string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	st := memtracking.New()
	reg := courier.NewRegistry().MustRegister(models.CourierFake, fake.New(time.Hour))
	sender := &recordingSender{}
	machine := conversation.New(st, reg, notify.NewDispatcher(sender), nil)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan [2]string, 1)
	opts := botAPIOpts{
		grpcAddr:       "127.0.0.1:0",
		httpAddr:       "127.0.0.1:0",
		swaggerPath:    sw,
		verifyToken:    "verify-me",
		appSecret:      appSecret,
		topic:          "t",
		consumerGroup:  "g",
		healthInterval: 50 * time.Millisecond,
		onListen:       func(g, h string) { addrCh <- [2]string{g, h} },
	}
	deps := botAPIDeps{
		store:    st,
		machine:  machine,
		admin:    adminapi.New(st, reg),
		sink:     inlineSink{h: machine},
		consumer: fakeConsumer{},
	}

	env := &testEnv{st: st, sender: sender, cancel: cancel, errCh: make(chan error, 1)}
	go func() { env.errCh <- runBotAPI(ctx, opts, deps) }()
	addrs := <-addrCh
	env.grpcAddr, env.httpAddr = addrs[0], addrs[1]

	t.Cleanup(func() {
		cancel()
		select {
		case <-env.errCh:
		case <-time.After(3 * time.Second):
			t.Error("timeout waiting bot-api to stop")
		}
	})
	return env
}

func (e *testEnv) url(path string) string { return "http://" + e.httpAddr + path }

func TestRunBotAPI_SwaggerAndAdmin(t *testing.T) {
	env := startBotAPI(t, "")

	resp, err := http.Get(env.url("/swagger.json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(env.url("/v1/couriers"))
	require.NoError(t, err)
	defer resp2.Body.Close()
	body, _ := io.ReadAll(resp2.Body)
	require.JSONEq(t, `{"couriers":["fake"]}`, string(body))
}

func TestRunBotAPI_MissingSwagger(t *testing.T) {
	err := runBotAPI(context.Background(), botAPIOpts{swaggerPath: filepath.Join(t.TempDir(), "nope.json")}, botAPIDeps{})
	require.Error(t, err)
}

func TestWebhook_VerifyHandshake(t *testing.T) {
	env := startBotAPI(t, "")

	resp, err := http.Get(env.url("/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42"))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "42", string(body))

	resp2, err := http.Get(env.url("/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42"))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusForbidden, resp2.StatusCode)
}

func TestWebhook_InlineMessageStartsConversation(t *testing.T) {
	env := startBotAPI(t, "")

	resp, err := http.Post(env.url("/webhook"), "application/json", strings.NewReader(textWebhook))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sess, err := env.st.GetSession(context.Background(), "919000000001")
	require.NoError(t, err)
	require.Equal(t, models.SessionChoosingCourier, sess.State)
	require.Equal(t, 1, env.sender.count())

	// provider redelivery of the same message id is absorbed
	resp2, err := http.Post(env.url("/webhook"), "application/json", strings.NewReader(textWebhook))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	require.Equal(t, 1, env.sender.count())
}

func TestWebhook_Signature(t *testing.T) {
	env := startBotAPI(t, "app-secret")

	resp, err := http.Post(env.url("/webhook"), "application/json", strings.NewReader(textWebhook))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write([]byte(textWebhook))
	req, err := http.NewRequest(http.MethodPost, env.url("/webhook"), strings.NewReader(textWebhook))
	require.NoError(t, err)
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestWebhook_MalformedBody(t *testing.T) {
	env := startBotAPI(t, "")
	resp, err := http.Post(env.url("/webhook"), "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGRPCHealth_ServingWhenStoreUp(t *testing.T) {
	env := startBotAPI(t, "")

	conn, err := grpc.NewClient(env.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}

type capturePublisher struct {
	key, value []byte
}

func (p *capturePublisher) PublishRaw(ctx context.Context, key, value []byte) error {
	p.key, p.value = key, value
	return nil
}

func TestQueueSink_KeysBySender(t *testing.T) {
	pub := &capturePublisher{}
	msg := models.InboundMessage{Sender: "919000000001", MessageID: "wamid.A", Kind: models.MessageText, Payload: "list"}
	require.NoError(t, queueSink{pub: pub}.Accept(context.Background(), msg))
	require.Equal(t, "919000000001", string(pub.key))

	got, err := messages.DecodeInbound(pub.value)
	require.NoError(t, err)
	require.Equal(t, "list", got.Payload)
}

func TestConsumeInbound_SwallowsFailures(t *testing.T) {
	st := memtracking.New()
	reg := courier.NewRegistry().MustRegister(models.CourierFake, fake.New(time.Hour))
	sender := &recordingSender{}
	machine := conversation.New(st, reg, notify.NewDispatcher(sender), nil)
	h := consumeInbound(context.Background(), machine)

	require.NoError(t, h(nil, []byte("not json")))

	_, value, err := messages.EncodeInbound(models.InboundMessage{Sender: "u1", MessageID: "m1", Kind: models.MessageText, Payload: "help"})
	require.NoError(t, err)
	require.NoError(t, h(nil, value))
	require.Equal(t, 1, sender.count())
}

const batchWebhook = `{"object":"whatsapp_business_account","entry":[{"id":"W","changes":[{"field":"messages","value":{"messages":[
 {"from":"919000000001","id":"wamid.A","timestamp":"1700000000","type":"text","text":{"body":"track"}},
 {"from":"919000000002","id":"wamid.B","timestamp":"1700000001","type":"text","text":{"body":"list"}}]}}]}]}`

type failingHandler struct {
	mu   sync.Mutex
	seen []string
}

func (h *failingHandler) Handle(ctx context.Context, msg models.InboundMessage) (conversation.Outcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.MessageID)
	return conversation.OutcomeIgnored, errors.New("store unavailable")
}

func TestWebhook_InlineFailureStillAcknowledgesBatch(t *testing.T) {
	h := &failingHandler{}
	wh := webhookHandler{sink: inlineSink{h: h}}

	rec := httptest.NewRecorder()
	wh.receive(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(batchWebhook)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"wamid.A", "wamid.B"}, h.seen)
}
