package mediator_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/noos-go/internal/application/mediator"
)

type pingQuery struct{ Name string }

type pongResponse struct{ Greeting string }

type pingHandler struct{}

func (h *pingHandler) Handle(_ context.Context, request mediator.Request) (mediator.Response, error) {
	q := request.(*pingQuery)
	return &pongResponse{Greeting: "hello " + q.Name}, nil
}

func TestMediator_DispatchesByRequestType(t *testing.T) {
	// Arrange
	m := mediator.New()
	require.NoError(t, mediator.RegisterHandler[*pingQuery](m, &pingHandler{}))

	// Act
	resp, err := m.Send(context.Background(), &pingQuery{Name: "world"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.(*pongResponse).Greeting)
}

func TestMediator_RejectsDuplicateRegistration(t *testing.T) {
	m := mediator.New()
	require.NoError(t, mediator.RegisterHandler[*pingQuery](m, &pingHandler{}))

	err := mediator.RegisterHandler[*pingQuery](m, &pingHandler{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestMediator_RejectsNilHandler(t *testing.T) {
	m := mediator.New()

	err := m.Register(reflect.TypeOf(&pingQuery{}), nil)

	require.Error(t, err)
}

func TestMediator_SendUnregisteredTypeFails(t *testing.T) {
	m := mediator.New()

	_, err := m.Send(context.Background(), &pingQuery{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

func TestMediator_SendNilRequestFails(t *testing.T) {
	m := mediator.New()

	_, err := m.Send(context.Background(), nil)

	require.Error(t, err)
}

func TestMediator_MiddlewaresWrapInRegistrationOrder(t *testing.T) {
	// Arrange
	m := mediator.New()
	require.NoError(t, mediator.RegisterHandler[*pingQuery](m, &pingHandler{}))

	var order []string
	record := func(name string) mediator.Middleware {
		return func(ctx context.Context, request mediator.Request, next mediator.HandlerFunc) (mediator.Response, error) {
			order = append(order, name+" before")
			resp, err := next(ctx, request)
			order = append(order, name+" after")
			return resp, err
		}
	}
	m.Use(record("outer"))
	m.Use(record("inner"))

	// Act
	_, err := m.Send(context.Background(), &pingQuery{Name: "world"})

	// Assert: first registered middleware is outermost
	require.NoError(t, err)
	assert.Equal(t, []string{"outer before", "inner before", "inner after", "outer after"}, order)
}
