package routers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"mentor-api/internal/ctx"
	"mentor-api/internal/shared"

	"github.com/labstack/echo/v4"
)

func RegisterBasicRoutes(e *echo.Group) {
	e.GET("/hello", Hello)
	e.GET("/items/:item_id", GetItem)
	e.POST("/submit", SubmitData)
}

func Hello(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Hello from FastAPI!"})
}

func GetItem(cc echo.Context) error {
	c := cc.(*ctx.Context)
	id, err := strconv.Atoi(c.Param("item_id"))
	if err != nil {
		c.LogValues.AddError(err)
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "item_id must be an integer"})
	}
	return c.JSON(http.StatusOK, shared.ItemResponse{ItemID: id, Name: fmt.Sprintf("Item %d", id)})
}

func SubmitData(cc echo.Context) error {
	c := cc.(*ctx.Context)
	var data map[string]json.RawMessage
	if ok, err := bindJSON(c, &data); !ok {
		return err
	}
	if data == nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "body must be a JSON object"})
	}
	return c.JSON(http.StatusOK, shared.SubmitResponse{Received: data, Status: shared.StatusSuccess})
}
