package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMessage() Message {
	return Message{
		ID:        "m-1",
		Kind:      KindReady,
		OrderID:   42,
		Reference: "A1B2C3",
		To:        Contact{Name: "Asha", Phone: "+911234567890", Email: "asha@example.com"},
		Subject:   "Order ready #A1B2C3",
		Body:      "Hi Asha, your order #A1B2C3 is ready for pickup.",
	}
}

func TestSMSTransport_PostsForm(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = map[string]string{
			"username": r.PostForm.Get("username"),
			"to":       r.PostForm.Get("to"),
			"message":  r.PostForm.Get("message"),
			"from":     r.PostForm.Get("from"),
			"apikey":   r.Header.Get("apikey"),
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 1/1","Recipients":[{"statusCode":101,"number":"+911234567890","status":"Success"}]}}`))
	}))
	defer srv.Close()

	tr := NewSMSTransport(SMSConfig{Username: "sandbox", APIKey: "key", URL: srv.URL, SenderID: "FOOD"}, srv.Client())
	require.NoError(t, tr.Send(context.Background(), testMessage()))

	assert.Equal(t, "sandbox", got["username"])
	assert.Equal(t, "+911234567890", got["to"])
	assert.Equal(t, "FOOD", got["from"])
	assert.Equal(t, "key", got["apikey"])
	assert.Contains(t, got["message"], "ready for pickup")
}

func TestSMSTransport_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	tr := NewSMSTransport(SMSConfig{URL: srv.URL}, srv.Client())

	assert.Error(t, tr.Send(context.Background(), testMessage()))

	msg := testMessage()
	msg.To.Phone = ""
	assert.ErrorIs(t, tr.Send(context.Background(), msg), ErrNoAddress)
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	return &ses.SendEmailOutput{}, f.err
}

func TestEmailTransport_BuildsInput(t *testing.T) {
	fake := &fakeSES{}
	tr := &EmailTransport{client: fake, sender: "orders@example.com"}

	require.NoError(t, tr.Send(context.Background(), testMessage()))
	require.NotNil(t, fake.input)
	assert.Equal(t, "orders@example.com", *fake.input.Source)
	assert.Equal(t, []string{"asha@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "Order ready #A1B2C3", *fake.input.Message.Subject.Data)
	assert.Contains(t, *fake.input.Message.Body.Text.Data, "ready for pickup")
}

func TestEmailTransport_Errors(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	tr := &EmailTransport{client: fake, sender: "orders@example.com"}
	assert.Error(t, tr.Send(context.Background(), testMessage()))

	msg := testMessage()
	msg.To.Email = ""
	assert.ErrorIs(t, tr.Send(context.Background(), msg), ErrNoAddress)

	_, err := NewEmailTransport(context.Background(), EmailConfig{Region: "us-east-1"})
	assert.Error(t, err)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func TestKafkaTransport_KeysByOrder(t *testing.T) {
	w := &fakeWriter{}
	tr := NewKafkaTransport(w)

	require.NoError(t, tr.Send(context.Background(), testMessage()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))
	assert.Equal(t, "kind", w.msgs[0].Headers[0].Key)

	var decoded Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "A1B2C3", decoded.Reference)

	w.err = errors.New("broker unavailable")
	assert.Error(t, tr.Send(context.Background(), testMessage()))
}

func TestMultiTransport(t *testing.T) {
	ok := &recordingTransport{}
	failing := &recordingTransport{err: errors.New("down")}
	m := MultiTransport{ok, failing, LogTransport{Logger: zap.NewNop()}}

	err := m.Send(context.Background(), testMessage())
	assert.ErrorContains(t, err, "recording: down")
	assert.Len(t, ok.messages(), 1)
	assert.Len(t, failing.messages(), 1)

	noPhone := testMessage()
	noPhone.To.Phone = ""
	sms := NewSMSTransport(SMSConfig{URL: "http://127.0.0.1:1"}, nil)
	assert.NoError(t, MultiTransport{sms, ok}.Send(context.Background(), noPhone))
}
