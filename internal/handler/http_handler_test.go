package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/opentalk/chatroom/internal/domain"
	"github.com/opentalk/chatroom/internal/service"
)

type fakeRoomService struct {
	nextID uint
	rooms  map[uint]domain.Room
	counts map[uint]int
}

func newFakeRoomService() *fakeRoomService {
	return &fakeRoomService{nextID: 1, rooms: make(map[uint]domain.Room), counts: make(map[uint]int)}
}

func (f *fakeRoomService) CreateRoom(ctx context.Context, req *domain.CreateRoomRequest) (*domain.RoomResponse, error) {
	room := domain.Room{ID: f.nextID, Name: req.Name, CreatedAt: time.Now().UTC()}
	f.nextID++
	f.rooms[room.ID] = room
	resp := room.ToResponse()
	return &resp, nil
}
func (f *fakeRoomService) GetRoom(ctx context.Context, roomID uint) (*domain.RoomWithCount, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, service.ErrRoomNotFound
	}
	return &domain.RoomWithCount{RoomResponse: room.ToResponse(), Count: f.counts[roomID]}, nil
}
func (f *fakeRoomService) ListRooms(ctx context.Context, name string) ([]domain.RoomWithCount, error) {
	out := []domain.RoomWithCount{}
	for _, room := range f.rooms {
		if name == "" || room.Name == name {
			out = append(out, domain.RoomWithCount{RoomResponse: room.ToResponse(), Count: f.counts[room.ID]})
		}
	}
	return out, nil
}
func (f *fakeRoomService) RenameRoom(ctx context.Context, roomID uint, req *domain.UpdateRoomRequest) (*domain.RoomResponse, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, service.ErrRoomNotFound
	}
	room.Name = req.Name
	f.rooms[roomID] = room
	resp := room.ToResponse()
	return &resp, nil
}
func (f *fakeRoomService) DeleteRoom(ctx context.Context, roomID uint) error {
	if _, ok := f.rooms[roomID]; !ok {
		return service.ErrRoomNotFound
	}
	delete(f.rooms, roomID)
	return nil
}

func newTestServer(svc service.RoomService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewHandler(svc).RegisterRoutes(engine)
	return engine
}

func do(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateRoom(t *testing.T) {
	req := require.New(t)
	engine := newTestServer(newFakeRoomService())

	w := do(t, engine, http.MethodPost, "/chatRooms", `{"name":"general"}`)
	req.Equal(http.StatusCreated, w.Code)

	var body struct {
		Success bool                `json:"success"`
		Data    domain.RoomResponse `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.True(body.Success)
	req.Equal("general", body.Data.Name)
	req.NotZero(body.Data.ID)
}

func TestHandler_CreateRoom_InvalidName(t *testing.T) {
	req := require.New(t)
	engine := newTestServer(newFakeRoomService())

	w := do(t, engine, http.MethodPost, "/chatRooms", `{"name":""}`)
	req.Equal(http.StatusBadRequest, w.Code)

	long := strings.Repeat("x", 51)
	w = do(t, engine, http.MethodPost, "/chatRooms", `{"name":"`+long+`"}`)
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestHandler_GetRoom(t *testing.T) {
	req := require.New(t)
	svc := newFakeRoomService()
	engine := newTestServer(svc)

	do(t, engine, http.MethodPost, "/chatRooms", `{"name":"general"}`)
	svc.counts[1] = 4

	w := do(t, engine, http.MethodGet, "/chatRooms/1", "")
	req.Equal(http.StatusOK, w.Code)

	var body struct {
		Data domain.RoomWithCount `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Equal("general", body.Data.Name)
	req.Equal(4, body.Data.Count)
}

func TestHandler_GetRoom_NotFoundAndBadID(t *testing.T) {
	req := require.New(t)
	engine := newTestServer(newFakeRoomService())

	w := do(t, engine, http.MethodGet, "/chatRooms/42", "")
	req.Equal(http.StatusNotFound, w.Code)

	w = do(t, engine, http.MethodGet, "/chatRooms/abc", "")
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestHandler_ListRooms_WithNameFilter(t *testing.T) {
	req := require.New(t)
	engine := newTestServer(newFakeRoomService())

	do(t, engine, http.MethodPost, "/chatRooms", `{"name":"general"}`)
	do(t, engine, http.MethodPost, "/chatRooms", `{"name":"lounge"}`)

	w := do(t, engine, http.MethodGet, "/chatRooms", "")
	req.Equal(http.StatusOK, w.Code)

	var body struct {
		Data []domain.RoomWithCount `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Len(body.Data, 2)

	w = do(t, engine, http.MethodGet, "/chatRooms?name=lounge", "")
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Len(body.Data, 1)
	req.Equal("lounge", body.Data[0].Name)
}

func TestHandler_RenameRoom(t *testing.T) {
	req := require.New(t)
	engine := newTestServer(newFakeRoomService())

	do(t, engine, http.MethodPost, "/chatRooms", `{"name":"general"}`)

	w := do(t, engine, http.MethodPut, "/chatRooms/1", `{"name":"lounge"}`)
	req.Equal(http.StatusOK, w.Code)

	w = do(t, engine, http.MethodPut, "/chatRooms/42", `{"name":"lounge"}`)
	req.Equal(http.StatusNotFound, w.Code)
}

func TestHandler_DeleteRoom(t *testing.T) {
	req := require.New(t)
	engine := newTestServer(newFakeRoomService())

	do(t, engine, http.MethodPost, "/chatRooms", `{"name":"general"}`)

	w := do(t, engine, http.MethodDelete, "/chatRooms/1", "")
	req.Equal(http.StatusNoContent, w.Code)

	w = do(t, engine, http.MethodDelete, "/chatRooms/1", "")
	req.Equal(http.StatusNotFound, w.Code)
}
