package server

import (
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
)

// demoStore backs the sample routes the demo server exposes to the model.
type demoStore struct {
	mu     sync.RWMutex
	nextID int
	users  map[int]gin.H
	posts  map[int]gin.H
}

func newDemoStore() *demoStore {
	return &demoStore{
		nextID: 1,
		users:  map[int]gin.H{},
		posts:  map[int]gin.H{},
	}
}

func (s *demoStore) list(items map[int]gin.H) []gin.H {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		out = append(out, items[id])
	}
	return out
}

func (s *demoStore) create(items map[int]gin.H, v gin.H) gin.H {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	v["id"] = id
	items[id] = v
	return v
}

func (s *demoStore) get(items map[int]gin.H, id int) (gin.H, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := items[id]
	return v, ok
}

func (s *demoStore) put(items map[int]gin.H, id int, v gin.H) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := items[id]; !ok {
		return false
	}
	v["id"] = id
	items[id] = v
	return true
}

func (s *demoStore) remove(items map[int]gin.H, id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := items[id]; !ok {
		return false
	}
	delete(items, id)
	return true
}

// registerDemoRoutes installs CRUD routes for users and posts plus a small
// admin group.
func registerDemoRoutes(r gin.IRouter, st *demoStore) {
	resource(r, "/users", st, st.users)
	resource(r, "/posts", st, st.posts)

	admin := r.Group("/admin")
	admin.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"users": len(st.list(st.users)),
			"posts": len(st.list(st.posts)),
		})
	})
}

func resource(r gin.IRouter, base string, st *demoStore, items map[int]gin.H) {
	r.GET(base, func(c *gin.Context) {
		c.JSON(http.StatusOK, st.list(items))
	})
	r.POST(base, func(c *gin.Context) {
		var v gin.H
		if err := c.ShouldBindJSON(&v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, st.create(items, v))
	})
	r.GET(base+"/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		v, found := st.get(items, id)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, v)
	})
	r.PUT(base+"/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var v gin.H
		if err := c.ShouldBindJSON(&v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !st.put(items, id, v) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, v)
	})
	r.DELETE(base+"/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if !st.remove(items, id) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
