package handlers

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"board-service/internal/access"
	"board-service/internal/mocks"
	"board-service/internal/models"
	"board-service/internal/repositories"
	"board-service/internal/storage"
)

var fakeJPEG = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("jfif")...)

func setupElementRouter(handler *ElementHandler, subject access.Subject) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withSubject(subject))
	r.GET("/boards/:board_id/elements", handler.ListElements)
	r.POST("/boards/:board_id/elements", handler.CreateElement)
	r.POST("/boards/:board_id/elements/:element_id/image", handler.AttachImage)
	r.DELETE("/boards/:board_id/elements/:element_id", handler.DeleteElement)
	return r
}

func newTestImageStore(t *testing.T) *storage.ImageStore {
	store, err := storage.NewImageStore(t.TempDir(), 1<<20)
	require.NoError(t, err)
	return store
}

func lockedTripBoard() models.Board {
	board := tripBoard()
	board.IsLocked = true
	return board
}

func TestListElements(t *testing.T) {
	boardRepo := new(mocks.BoardRepositoryMock)
	elementRepo := new(mocks.ElementRepositoryMock)
	router := setupElementRouter(NewElementHandler(boardRepo, elementRepo, nil, nil, nil), member)

	boardRepo.On("GetBoard", mock.Anything, boardID).Return(tripBoard(), nil).Once()
	elementRepo.On("ListElements", mock.Anything, boardID).Return([]models.BoardElement{
		{ID: "x", BoardID: boardID, ElementNumber: 3},
		{ID: "y", BoardID: boardID, ElementNumber: 7},
	}, nil).Once()

	rec := serve(router, http.MethodGet, "/boards/"+boardID+"/elements", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Elements []models.BoardElement `json:"elements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 7, resp.Elements[0].ElementNumber)
	require.Equal(t, 3, resp.Elements[1].ElementNumber)
}

func TestListElementsHiddenFromOutsiders(t *testing.T) {
	boardRepo := new(mocks.BoardRepositoryMock)
	elementRepo := new(mocks.ElementRepositoryMock)
	router := setupElementRouter(NewElementHandler(boardRepo, elementRepo, nil, nil, nil), outsider)

	boardRepo.On("GetBoard", mock.Anything, boardID).Return(tripBoard(), nil).Once()

	rec := serve(router, http.MethodGet, "/boards/"+boardID+"/elements", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	elementRepo.AssertNotCalled(t, "ListElements", mock.Anything, mock.Anything)
}

func TestCreateElementBroadcasts(t *testing.T) {
	boardRepo := new(mocks.BoardRepositoryMock)
	elementRepo := new(mocks.ElementRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	router := setupElementRouter(NewElementHandler(boardRepo, elementRepo, nil, hub, nil), member)

	note := "harbour view"
	created := models.BoardElement{ID: elementID, BoardID: boardID, ElementNumber: 4, Note: &note}
	boardRepo.On("GetBoard", mock.Anything, boardID).Return(tripBoard(), nil).Once()
	elementRepo.On("CreateElement", mock.Anything, mock.MatchedBy(func(el models.NewElement) bool {
		return el.BoardID == boardID &&
			el.UserID != nil && *el.UserID == memberID &&
			el.Note != nil && *el.Note == note &&
			el.Direction != nil && *el.Direction == models.DirectionNorthEast
	})).Return(created, nil).Once()
	hub.On("BroadcastElement", created).Return().Once()

	rec := serve(router, http.MethodPost, "/boards/"+boardID+"/elements", `{"note":"harbour view","direction":"NE"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	boardRepo.AssertExpectations(t)
	elementRepo.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestCreateElementRejectsUnknownDirection(t *testing.T) {
	boardRepo := new(mocks.BoardRepositoryMock)
	router := setupElementRouter(NewElementHandler(boardRepo, new(mocks.ElementRepositoryMock), nil, nil, nil), owner)

	boardRepo.On("GetBoard", mock.Anything, boardID).Return(tripBoard(), nil).Once()

	rec := serve(router, http.MethodPost, "/boards/"+boardID+"/elements", `{"direction":"UP"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateElementOnLockedBoard(t *testing.T) {
	boardRepo := new(mocks.BoardRepositoryMock)
	elementRepo := new(mocks.ElementRepositoryMock)
	hub := new(mocks.BroadcasterMock)

	boardRepo.On("GetBoard", mock.Anything, boardID).Return(lockedTripBoard(), nil)

	memberRouter := setupElementRouter(NewElementHandler(boardRepo, elementRepo, nil, hub, nil), member)
	rec := serve(memberRouter, http.MethodPost, "/boards/"+boardID+"/elements", `{"note":"x"}`)
	require.Equal(t, http.StatusLocked, rec.Code)
	elementRepo.AssertNotCalled(t, "CreateElement", mock.Anything, mock.Anything)

	elementRepo.On("CreateElement", mock.Anything, mock.Anything).Return(models.BoardElement{ID: elementID, BoardID: boardID, ElementNumber: 1}, nil).Once()
	hub.On("BroadcastElement", mock.Anything).Return().Once()
	ownerRouter := setupElementRouter(NewElementHandler(boardRepo, elementRepo, nil, hub, nil), owner)
	rec = serve(ownerRouter, http.MethodPost, "/boards/"+boardID+"/elements", `{"note":"x"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateElementSequenceExhausted(t *testing.T) {
	boardRepo := new(mocks.BoardRepositoryMock)
	elementRepo := new(mocks.ElementRepositoryMock)
	router := setupElementRouter(NewElementHandler(boardRepo, elementRepo, nil, new(mocks.BroadcasterMock), nil), owner)

	boardRepo.On("GetBoard", mock.Anything, boardID).Return(tripBoard(), nil).Once()
	elementRepo.On("CreateElement", mock.Anything, mock.Anything).Return(nil, repositories.ErrSequenceConflict).Once()

	rec := serve(router, http.MethodPost, "/boards/"+boardID+"/elements", `{"note":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAttachImageStoresAndBroadcasts(t *testing.T) {
	boardRepo := new(mocks.BoardRepositoryMock)
	elementRepo := new(mocks.ElementRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	images := newTestImageStore(t)
	router := setupElementRouter(NewElementHandler(boardRepo, elementRepo, images, hub, nil), member)

	var storedID string
	boardRepo.On("GetBoard", mock.Anything, boardID).Return(tripBoard(), nil).Once()
	elementRepo.On("GetElement", mock.Anything, elementID).Return(models.BoardElement{ID: elementID, BoardID: boardID, ElementNumber: 2}, nil).Once()
	elementRepo.On("SetImage", mock.Anything, elementID, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { storedID = args.String(2) }).
		Return(models.BoardElement{ID: elementID, BoardID: boardID, ElementNumber: 2}, nil).Once()
	hub.On("BroadcastImage", mock.Anything).Return().Once()

	body := `{"image":"` + base64.StdEncoding.EncodeToString(fakeJPEG) + `"}`
	rec := serve(router, http.MethodPost, "/boards/"+boardID+"/elements/"+elementID+"/image", body)

	require.Equal(t, http.StatusOK, rec.Code)
	f, err := images.Open(storedID)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, fakeJPEG, data)
	elementRepo.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestAttachImageRejectsNonJPEG(t *testing.T) {
	boardRepo := new(mocks.BoardRepositoryMock)
	elementRepo := new(mocks.ElementRepositoryMock)
	router := setupElementRouter(NewElementHandler(boardRepo, elementRepo, newTestImageStore(t), nil, nil), member)

	boardRepo.On("GetBoard", mock.Anything, boardID).Return(tripBoard(), nil).Once()
	elementRepo.On("GetElement", mock.Anything, elementID).Return(models.BoardElement{ID: elementID, BoardID: boardID}, nil).Once()

	body := `{"image":"` + base64.StdEncoding.EncodeToString([]byte("GIF89a")) + `"}`
	rec := serve(router, http.MethodPost, "/boards/"+boardID+"/elements/"+elementID+"/image", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	elementRepo.AssertNotCalled(t, "SetImage", mock.Anything, mock.Anything, mock.Anything)
}

func TestElementFromAnotherBoardIsNotFound(t *testing.T) {
	boardRepo := new(mocks.BoardRepositoryMock)
	elementRepo := new(mocks.ElementRepositoryMock)
	router := setupElementRouter(NewElementHandler(boardRepo, elementRepo, newTestImageStore(t), nil, nil), owner)

	boardRepo.On("GetBoard", mock.Anything, boardID).Return(tripBoard(), nil).Once()
	elementRepo.On("GetElement", mock.Anything, elementID).Return(models.BoardElement{ID: elementID, BoardID: "other"}, nil).Once()

	rec := serve(router, http.MethodDelete, "/boards/"+boardID+"/elements/"+elementID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	elementRepo.AssertNotCalled(t, "DeleteElement", mock.Anything, mock.Anything)
}

func TestDeleteElementRemovesImageAndBroadcasts(t *testing.T) {
	boardRepo := new(mocks.BoardRepositoryMock)
	elementRepo := new(mocks.ElementRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	images := newTestImageStore(t)
	router := setupElementRouter(NewElementHandler(boardRepo, elementRepo, images, hub, nil), owner)

	imageID, err := images.Save(fakeJPEG)
	require.NoError(t, err)

	boardRepo.On("GetBoard", mock.Anything, boardID).Return(tripBoard(), nil).Once()
	elementRepo.On("GetElement", mock.Anything, elementID).Return(models.BoardElement{ID: elementID, BoardID: boardID, ImageID: &imageID}, nil).Once()
	elementRepo.On("DeleteElement", mock.Anything, elementID).Return(nil).Once()
	hub.On("BroadcastElementRemoved", boardID, elementID).Return().Once()

	rec := serve(router, http.MethodDelete, "/boards/"+boardID+"/elements/"+elementID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err = images.Open(imageID)
	assert.ErrorIs(t, err, storage.ErrImageNotFound)
	elementRepo.AssertExpectations(t)
	hub.AssertExpectations(t)
}
