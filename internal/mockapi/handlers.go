package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront-client/api"
	"storefront-client/client/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ctxKey struct{}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": message, "data": data})
}

func writeError(w http.ResponseWriter, status int, message, messageVi string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"success": false, "message": message}
	if messageVi != "" {
		body["messageVi"] = messageVi
	}
	_ = json.NewEncoder(w).Encode(body)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "Dữ liệu không hợp lệ")
		return false
	}
	return true
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Authentication required", "Vui lòng đăng nhập")
			return
		}
		claims, err := s.tokens.verify(strings.TrimPrefix(h, "Bearer "), s.gen.Load())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Access token expired or invalid", "Phiên đăng nhập đã hết hạn")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// startSession emite o access token e grava o refresh token no cookie.
func (s *Server) startSession(w http.ResponseWriter, u domain.User, status int, message string) {
	now := s.now()
	tok, _, err := s.tokens.issue(u.ID, u.Email, s.gen.Load(), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token", "")
		return
	}
	rt := uuid.NewString()
	s.data.saveRefresh(rt, u.ID, now.Add(s.refreshTTL))
	s.setRefreshCookie(w, rt, int(s.refreshTTL.Seconds()))
	writeData(w, status, message, api.AuthResult{AccessToken: tok, User: u})
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    value,
		Path:     s.basePath + "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	u, err := s.data.authenticate(in.Email, in.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", "Email hoặc mật khẩu không đúng")
		return
	}
	s.startSession(w, u, http.StatusOK, "Login successful")
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in api.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Email) == "" || len(in.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Email and a password of at least 6 characters are required", "Email và mật khẩu (tối thiểu 6 ký tự) là bắt buộc")
		return
	}
	u, err := s.data.createUser(in, false)
	if errors.Is(err, errUserExists) {
		writeError(w, http.StatusConflict, "Email already registered", "Email đã được đăng ký")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not create account", "")
		return
	}
	tok := s.data.newOneTimeToken(s.data.verifies, u.Email)
	s.log.Info().Str("email", u.Email).Str("verify_token", tok).Msg("verification email")
	s.startSession(w, u, http.StatusCreated, "Registration successful")
}

// google aceita a credencial como prova de identidade: o email é o próprio
// valor da credencial. Basta para exercitar o fluxo do client.
func (s *Server) google(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Credential string `json:"credential"`
	}
	if !decode(w, r, &in) {
		return
	}
	email := strings.TrimSpace(in.Credential)
	if !strings.Contains(email, "@") {
		writeError(w, http.StatusUnauthorized, "Invalid Google credential", "Thông tin Google không hợp lệ")
		return
	}
	u, ok := s.data.userByEmail(email)
	if !ok {
		var err error
		u, err = s.data.createUser(api.RegisterInput{Name: strings.Split(email, "@")[0], Email: email, Password: uuid.NewString()}, true)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not create account", "")
			return
		}
	}
	s.startSession(w, u, http.StatusOK, "Login successful")
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	c, err := r.Cookie(RefreshCookie)
	if err != nil || c.Value == "" {
		writeError(w, http.StatusUnauthorized, "Refresh token missing", "Không tìm thấy refresh token")
		return
	}
	userID, ok := s.data.takeRefresh(c.Value, s.now())
	if !ok {
		s.setRefreshCookie(w, "", -1)
		writeError(w, http.StatusUnauthorized, "Refresh token expired", "Phiên đăng nhập đã hết hạn")
		return
	}
	u, ok := s.data.userByID(userID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found", "Không tìm thấy người dùng")
		return
	}

	now := s.now()
	tok, _, err := s.tokens.issue(u.ID, u.Email, s.gen.Load(), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token", "")
		return
	}
	rt := uuid.NewString()
	s.data.saveRefresh(rt, u.ID, now.Add(s.refreshTTL))
	s.setRefreshCookie(w, rt, int(s.refreshTTL.Seconds()))
	writeData(w, http.StatusOK, "Token refreshed", map[string]string{"accessToken": tok})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(RefreshCookie); err == nil {
		s.data.dropRefresh(c.Value)
	}
	s.setRefreshCookie(w, "", -1)
	writeData(w, http.StatusOK, "Logged out", nil)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, ok := s.data.userByID(userIDFrom(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", "Không tìm thấy người dùng")
		return
	}
	writeData(w, http.StatusOK, "", u)
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	// responde igual para email conhecido ou não
	if _, ok := s.data.userByEmail(in.Email); ok {
		tok := s.data.newOneTimeToken(s.data.resets, in.Email)
		s.log.Info().Str("email", in.Email).Str("reset_token", tok).Msg("password reset email")
	}
	writeData(w, http.StatusOK, "If the email exists, a reset link was sent", nil)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	if len(in.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must have at least 6 characters", "Mật khẩu phải có ít nhất 6 ký tự")
		return
	}
	if err := s.data.resetPassword(in.Token, in.Password); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token", "Liên kết không hợp lệ hoặc đã hết hạn")
		return
	}
	writeData(w, http.StatusOK, "Password updated", nil)
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &in) {
		return
	}
	if err := s.data.verifyEmail(in.Token); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired verification token", "Liên kết không hợp lệ hoặc đã hết hạn")
		return
	}
	writeData(w, http.StatusOK, "Email verified", nil)
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	if u, ok := s.data.userByEmail(in.Email); ok && !u.EmailVerified {
		tok := s.data.newOneTimeToken(s.data.verifies, u.Email)
		s.log.Info().Str("email", u.Email).Str("verify_token", tok).Msg("verification email")
	}
	writeData(w, http.StatusOK, "Verification email sent", nil)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	num := func(k string) float64 {
		v, _ := strconv.ParseFloat(q.Get(k), 64)
		return v
	}
	atoi := func(k string) int {
		v, _ := strconv.Atoi(q.Get(k))
		return v
	}
	page := s.data.listProducts(q.Get("category"), q.Get("search"), num("minPrice"), num("maxPrice"), q.Get("sort"), atoi("page"), atoi("limit"))
	writeData(w, http.StatusOK, "", page)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := s.data.product(chi.URLParam(r, "idOrSlug"))
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found", "Không tìm thấy sản phẩm")
		return
	}
	writeData(w, http.StatusOK, "", p)
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	s.data.mu.Lock()
	cats := append([]api.Category{}, s.data.categories...)
	s.data.mu.Unlock()
	writeData(w, http.StatusOK, "", cats)
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", s.data.cart(userIDFrom(r.Context())))
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.Quantity <= 0 {
		in.Quantity = 1
	}
	cart, err := s.data.addToCart(userIDFrom(r.Context()), in.ProductID, in.Quantity)
	if s.cartError(w, err) {
		return
	}
	writeData(w, http.StatusOK, "Added to cart", cart)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quantity int `json:"quantity"`
	}
	if !decode(w, r, &in) {
		return
	}
	cart, err := s.data.updateCartItem(userIDFrom(r.Context()), chi.URLParam(r, "itemID"), in.Quantity)
	if s.cartError(w, err) {
		return
	}
	writeData(w, http.StatusOK, "Cart updated", cart)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	cart, err := s.data.updateCartItem(userIDFrom(r.Context()), chi.URLParam(r, "itemID"), 0)
	if s.cartError(w, err) {
		return
	}
	writeData(w, http.StatusOK, "Item removed", cart)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.data.clearCart(userIDFrom(r.Context()))
	writeData(w, http.StatusOK, "Cart cleared", nil)
}

func (s *Server) cartError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "Item not found", "Không tìm thấy sản phẩm")
	case errors.Is(err, errInsufficientQty):
		writeError(w, http.StatusUnprocessableEntity, "Out of stock", "Hết hàng")
	default:
		writeError(w, http.StatusInternalServerError, "Cart error", "")
	}
	return true
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var in api.CreateOrder
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.ShippingAddress.Street) == "" || in.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "Shipping address and payment method are required", "Vui lòng nhập địa chỉ và phương thức thanh toán")
		return
	}
	o, err := s.data.createOrder(userIDFrom(r.Context()), in, s.now())
	switch {
	case errors.Is(err, errEmptyCart):
		writeError(w, http.StatusBadRequest, "Cart is empty", "Giỏ hàng trống")
	case errors.Is(err, errNotEnoughPoints):
		writeError(w, http.StatusBadRequest, "Not enough points", "Không đủ điểm")
	case errors.Is(err, errInsufficientQty):
		writeError(w, http.StatusUnprocessableEntity, "Out of stock", "Hết hàng")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Could not create order", "")
	default:
		writeData(w, http.StatusCreated, "Order created", o)
	}
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", s.data.listOrders(userIDFrom(r.Context())))
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.data.order(userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found", "Không tìm thấy đơn hàng")
		return
	}
	writeData(w, http.StatusOK, "", o)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.data.cancelOrder(userIDFrom(r.Context()), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "Order not found", "Không tìm thấy đơn hàng")
	case errors.Is(err, errNotCancellable):
		writeError(w, http.StatusConflict, "Order cannot be cancelled", "Không thể hủy đơn hàng")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Could not cancel order", "")
	default:
		writeData(w, http.StatusOK, "Order cancelled", o)
	}
}

func (s *Server) points(w http.ResponseWriter, r *http.Request) {
	p, _ := s.data.loyalty(userIDFrom(r.Context()))
	writeData(w, http.StatusOK, "", p)
}

func (s *Server) pointsHistory(w http.ResponseWriter, r *http.Request) {
	_, h := s.data.loyalty(userIDFrom(r.Context()))
	writeData(w, http.StatusOK, "", h)
}
