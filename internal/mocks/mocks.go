package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"board-service/internal/models"
	"board-service/internal/repositories"
)

type BoardRepositoryMock struct {
	mock.Mock
}

func (m *BoardRepositoryMock) CreateBoard(ctx context.Context, ownerID, name string) (models.Board, error) {
	args := m.Called(ctx, ownerID, name)
	var board models.Board
	if val := args.Get(0); val != nil {
		board = val.(models.Board)
	}
	return board, args.Error(1)
}

func (m *BoardRepositoryMock) GetBoard(ctx context.Context, boardID string) (models.Board, error) {
	args := m.Called(ctx, boardID)
	var board models.Board
	if val := args.Get(0); val != nil {
		board = val.(models.Board)
	}
	return board, args.Error(1)
}

func (m *BoardRepositoryMock) ListBoardsForUser(ctx context.Context, userID string, includeAll bool) ([]models.Board, error) {
	args := m.Called(ctx, userID, includeAll)
	var list []models.Board
	if val := args.Get(0); val != nil {
		list = val.([]models.Board)
	}
	return list, args.Error(1)
}

func (m *BoardRepositoryMock) UpdateBoard(ctx context.Context, boardID, name string, isLocked bool) (models.Board, error) {
	args := m.Called(ctx, boardID, name, isLocked)
	var board models.Board
	if val := args.Get(0); val != nil {
		board = val.(models.Board)
	}
	return board, args.Error(1)
}

func (m *BoardRepositoryMock) DeleteBoard(ctx context.Context, boardID string) error {
	args := m.Called(ctx, boardID)
	return args.Error(0)
}

func (m *BoardRepositoryMock) AddMember(ctx context.Context, boardID, userID string) error {
	args := m.Called(ctx, boardID, userID)
	return args.Error(0)
}

func (m *BoardRepositoryMock) RemoveMember(ctx context.Context, boardID, userID string) error {
	args := m.Called(ctx, boardID, userID)
	return args.Error(0)
}

type ElementRepositoryMock struct {
	mock.Mock
}

func (m *ElementRepositoryMock) CreateElement(ctx context.Context, el models.NewElement) (models.BoardElement, error) {
	args := m.Called(ctx, el)
	var element models.BoardElement
	if val := args.Get(0); val != nil {
		element = val.(models.BoardElement)
	}
	return element, args.Error(1)
}

func (m *ElementRepositoryMock) ListElements(ctx context.Context, boardID string) ([]models.BoardElement, error) {
	args := m.Called(ctx, boardID)
	var list []models.BoardElement
	if val := args.Get(0); val != nil {
		list = val.([]models.BoardElement)
	}
	return list, args.Error(1)
}

func (m *ElementRepositoryMock) GetElement(ctx context.Context, elementID string) (models.BoardElement, error) {
	args := m.Called(ctx, elementID)
	var element models.BoardElement
	if val := args.Get(0); val != nil {
		element = val.(models.BoardElement)
	}
	return element, args.Error(1)
}

func (m *ElementRepositoryMock) SetImage(ctx context.Context, elementID, imageID string) (models.BoardElement, error) {
	args := m.Called(ctx, elementID, imageID)
	var element models.BoardElement
	if val := args.Get(0); val != nil {
		element = val.(models.BoardElement)
	}
	return element, args.Error(1)
}

func (m *ElementRepositoryMock) DeleteElement(ctx context.Context, elementID string) error {
	args := m.Called(ctx, elementID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) UpsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) FindByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

// BroadcasterMock records realtime fan-out from REST handlers.
type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastElement(element models.BoardElement) {
	m.Called(element)
}

func (m *BroadcasterMock) BroadcastImage(element models.BoardElement) {
	m.Called(element)
}

func (m *BroadcasterMock) BroadcastElementRemoved(boardID, elementID string) {
	m.Called(boardID, elementID)
}

func (m *BroadcasterMock) RevalidateBoard(ctx context.Context, boardID string) {
	m.Called(ctx, boardID)
}

// PublisherMock stands in for the AMQP publisher behind audit and lifecycle events.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.BoardRepository = (*BoardRepositoryMock)(nil)
var _ repositories.ElementRepository = (*ElementRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
