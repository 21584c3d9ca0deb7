// Notification HTTP handlers.
//
//   - GET  /notifications        (computed feed with stats, filter and search)
//   - POST /notifications/clear  (moves the caller's low-water mark to now)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ClearNotificationsResponse reports the new low-water mark.
type ClearNotificationsResponse struct {
	ClearedAt time.Time `json:"cleared_at"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     Notification feed
// @Description Merges incoming chat messages, comments and likes on the caller's posts, newest first.
// @Description Items at or before the last clear are dropped. An unknown type falls back to "all".
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Param       type  query     string  false  "all, message, comment or like"  default(all)
// @Param       q     query     string  false  "Case-insensitive search over title, description and excerpt"
// @Success     200   {object}  services.Feed
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthenticated"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	feed, err := h.notifs.BuildFeed(c.Request.Context(), viewer(c), c.Query("type"), strings.TrimSpace(c.Query("q")))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, feed)
}

// ClearNotifications godoc
// @ID          clearNotifications
// @Summary     Clear the notification feed
// @Description Hides everything up to now. No underlying message, comment or like is touched.
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ClearNotificationsResponse
// @Router      /notifications/clear [post]
func (h *Handlers) ClearNotifications(c *gin.Context) {
	at, err := h.notifs.Clear(c.Request.Context(), viewer(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ClearNotificationsResponse{ClearedAt: at})
}
