package gateway

import (
	"errors"
	"net/http"

	"github.com/example/storefront/pkg/apperror"
	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (g *Gateway) respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	message := "Internal server error"
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if kind == apperror.KindUnhandled {
		g.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"message": message})
}

func (g *Gateway) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		g.respondError(c, apperror.Wrap(apperror.KindInvalidInput, "Invalid request body", err))
		return false
	}
	return true
}

func (g *Gateway) signup(c *gin.Context) {
	var req service.SignupInput
	if !g.bindJSON(c, &req) {
		return
	}

	res, err := g.service.Signup(c.Request.Context(), req)
	if err != nil {
		g.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    res.User,
		"token":   res.Token,
	})
}

func (g *Gateway) login(c *gin.Context) {
	var req service.LoginInput
	if !g.bindJSON(c, &req) {
		return
	}

	res, err := g.service.Login(c.Request.Context(), req)
	if err != nil {
		g.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    res.User,
		"token":   res.Token,
	})
}

func (g *Gateway) logout(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		g.respondError(c, apperror.Unauthenticated("Invalid token"))
		return
	}

	if err := g.service.Logout(c.Request.Context(), claims); err != nil {
		g.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
		"revoked": g.service.RevocationEnabled(),
	})
}

func (g *Gateway) profile(c *gin.Context) {
	userID, ok := g.requireUser(c)
	if !ok {
		return
	}

	user, err := g.service.Profile(c.Request.Context(), userID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (g *Gateway) createOrder(c *gin.Context) {
	userID, ok := g.requireUser(c)
	if !ok {
		return
	}

	var req service.OrderInput
	if !g.bindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader(idempotencyHeader)

	order, err := g.service.CreateOrder(c.Request.Context(), userID, req)
	if err != nil {
		g.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order placed successfully",
		"order":   order,
	})
}

func (g *Gateway) checkout(c *gin.Context) {
	userID, ok := g.requireUser(c)
	if !ok {
		return
	}

	var req service.CheckoutInput
	if !g.bindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader(idempotencyHeader)

	res, err := g.service.Checkout(c.Request.Context(), userID, req)
	if err != nil {
		g.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"message": "Order placed successfully",
		"order":   res.Order,
	})
}

func (g *Gateway) listOrders(c *gin.Context) {
	userID, ok := g.requireUser(c)
	if !ok {
		return
	}

	orders, err := g.service.ListOrders(c.Request.Context(), userID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (g *Gateway) getOrder(c *gin.Context) {
	userID, ok := g.requireUser(c)
	if !ok {
		return
	}

	order, err := g.service.GetOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (g *Gateway) getCart(c *gin.Context) {
	userID, ok := g.requireUser(c)
	if !ok {
		return
	}

	cart, err := g.service.GetCart(c.Request.Context(), userID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

func (g *Gateway) replaceCart(c *gin.Context) {
	userID, ok := g.requireUser(c)
	if !ok {
		return
	}

	var req service.CartInput
	if !g.bindJSON(c, &req) {
		return
	}

	cart, err := g.service.ReplaceCart(c.Request.Context(), userID, req)
	if err != nil {
		g.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart updated successfully",
		"cart":    cart,
	})
}
