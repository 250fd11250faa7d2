package mockapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-client/api"
	"storefront-client/client/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUserExists      = errors.New("email already registered")
	errBadCredentials  = errors.New("invalid credentials")
	errNotFound        = errors.New("not found")
	errInsufficientQty = errors.New("insufficient stock")
	errEmptyCart       = errors.New("cart is empty")
	errNotCancellable  = errors.New("order cannot be cancelled")
	errNotEnoughPoints = errors.New("not enough points")
)

type userRecord struct {
	user         domain.User
	passwordHash []byte
}

type refreshRecord struct {
	userID    string
	expiresAt time.Time
}

// data guarda todo o estado do backend sob um único mutex.
type data struct {
	mu sync.Mutex

	cost int

	users      map[string]*userRecord // por email
	usersByID  map[string]*userRecord
	refresh    map[string]refreshRecord
	resets     map[string]string // token -> email
	verifies   map[string]string // token -> email
	categories []api.Category
	products   []api.Product
	carts      map[string]*api.Cart
	orders     map[string][]api.Order
	points     map[string]int
	history    map[string][]api.PointsEntry
}

func newData(cost int) *data {
	d := &data{
		cost:      cost,
		users:     make(map[string]*userRecord),
		usersByID: make(map[string]*userRecord),
		refresh:   make(map[string]refreshRecord),
		resets:    make(map[string]string),
		verifies:  make(map[string]string),
		carts:     make(map[string]*api.Cart),
		orders:    make(map[string][]api.Order),
		points:    make(map[string]int),
		history:   make(map[string][]api.PointsEntry),
	}
	d.categories = []api.Category{
		{ID: "c1", Name: "Shoes", Slug: "shoes"},
		{ID: "c2", Name: "Bags", Slug: "bags"},
		{ID: "c3", Name: "Accessories", Slug: "accessories"},
	}
	d.products = []api.Product{
		{ID: "p1", Name: "Runner Sneaker", Slug: "runner-sneaker", Price: 89.9, Category: "shoes", Stock: 12, Rating: 4.6},
		{ID: "p2", Name: "Leather Boot", Slug: "leather-boot", Price: 149, SalePrice: 119, Category: "shoes", Stock: 4, Rating: 4.8},
		{ID: "p3", Name: "Canvas Tote", Slug: "canvas-tote", Price: 29.5, Category: "bags", Stock: 30, Rating: 4.2},
		{ID: "p4", Name: "Travel Backpack", Slug: "travel-backpack", Price: 75, Category: "bags", Stock: 0, Rating: 4.5},
		{ID: "p5", Name: "Wool Scarf", Slug: "wool-scarf", Price: 19.9, Category: "accessories", Stock: 50, Rating: 4.1},
	}
	return d
}

func (d *data) createUser(in api.RegisterInput, verified bool) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[email]; ok {
		return domain.User{}, errUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), d.cost)
	if err != nil {
		return domain.User{}, err
	}
	rec := &userRecord{
		user: domain.User{
			ID:            uuid.NewString(),
			Email:         email,
			Name:          in.Name,
			Phone:         in.Phone,
			Role:          "customer",
			EmailVerified: verified,
		},
		passwordHash: hash,
	}
	d.users[email] = rec
	d.usersByID[rec.user.ID] = rec
	return rec.user, nil
}

func (d *data) authenticate(email, password string) (domain.User, error) {
	d.mu.Lock()
	rec, ok := d.users[strings.ToLower(strings.TrimSpace(email))]
	d.mu.Unlock()
	if !ok {
		return domain.User{}, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)); err != nil {
		return domain.User{}, errBadCredentials
	}
	return rec.user, nil
}

func (d *data) userByID(id string) (domain.User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.usersByID[id]
	if !ok {
		return domain.User{}, false
	}
	return rec.user, true
}

func (d *data) userByEmail(email string) (domain.User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.User{}, false
	}
	return rec.user, true
}

func (d *data) saveRefresh(token, userID string, exp time.Time) {
	d.mu.Lock()
	d.refresh[token] = refreshRecord{userID: userID, expiresAt: exp}
	d.mu.Unlock()
}

// takeRefresh consome o refresh token (rotação: cada token vale uma vez).
func (d *data) takeRefresh(token string, now time.Time) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.refresh[token]
	if !ok {
		return "", false
	}
	delete(d.refresh, token)
	if now.After(rec.expiresAt) {
		return "", false
	}
	return rec.userID, true
}

func (d *data) dropRefresh(token string) {
	d.mu.Lock()
	delete(d.refresh, token)
	d.mu.Unlock()
}

func (d *data) dropAllRefresh() {
	d.mu.Lock()
	d.refresh = make(map[string]refreshRecord)
	d.mu.Unlock()
}

func (d *data) newOneTimeToken(m map[string]string, email string) string {
	tok := uuid.NewString()
	d.mu.Lock()
	m[tok] = strings.ToLower(strings.TrimSpace(email))
	d.mu.Unlock()
	return tok
}

func (d *data) resetPassword(token, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	email, ok := d.resets[token]
	if !ok {
		return errNotFound
	}
	rec, ok := d.users[email]
	if !ok {
		return errNotFound
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return err
	}
	rec.passwordHash = hash
	delete(d.resets, token)
	return nil
}

func (d *data) verifyEmail(token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	email, ok := d.verifies[token]
	if !ok {
		return errNotFound
	}
	if rec, ok := d.users[email]; ok {
		rec.user.EmailVerified = true
	}
	delete(d.verifies, token)
	return nil
}

// listProducts aplica filtro, ordenação e paginação.
func (d *data) listProducts(category, search string, minPrice, maxPrice float64, sortBy string, page, limit int) api.ProductPage {
	d.mu.Lock()
	var out []api.Product
	for _, p := range d.products {
		price := effectivePrice(p)
		switch {
		case category != "" && p.Category != category:
		case search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)):
		case minPrice > 0 && price < minPrice:
		case maxPrice > 0 && price > maxPrice:
		default:
			out = append(out, p)
		}
	}
	d.mu.Unlock()

	switch sortBy {
	case "price_asc":
		sort.SliceStable(out, func(i, j int) bool { return effectivePrice(out[i]) < effectivePrice(out[j]) })
	case "price_desc":
		sort.SliceStable(out, func(i, j int) bool { return effectivePrice(out[i]) > effectivePrice(out[j]) })
	case "rating":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 12
	}
	total := len(out)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	return api.ProductPage{
		Products: out[start:end],
		Pagination: api.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}
}

func (d *data) product(idOrSlug string) (api.Product, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.productLocked(idOrSlug)
}

func (d *data) productLocked(idOrSlug string) (api.Product, bool) {
	for _, p := range d.products {
		if p.ID == idOrSlug || p.Slug == idOrSlug {
			return p, true
		}
	}
	return api.Product{}, false
}

func effectivePrice(p api.Product) float64 {
	if p.SalePrice > 0 {
		return p.SalePrice
	}
	return p.Price
}

func (d *data) cartLocked(userID string) *api.Cart {
	c, ok := d.carts[userID]
	if !ok {
		c = &api.Cart{ID: uuid.NewString(), Items: []api.CartItem{}}
		d.carts[userID] = c
	}
	return c
}

func (d *data) cart(userID string) api.Cart {
	d.mu.Lock()
	defer d.mu.Unlock()
	return snapshot(d.cartLocked(userID))
}

func (d *data) addToCart(userID, productID string, qty int) (api.Cart, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.productLocked(productID)
	if !ok {
		return api.Cart{}, errNotFound
	}
	c := d.cartLocked(userID)
	for i := range c.Items {
		if c.Items[i].ProductID == p.ID {
			if c.Items[i].Quantity+qty > p.Stock {
				return api.Cart{}, errInsufficientQty
			}
			c.Items[i].Quantity += qty
			return snapshot(c), nil
		}
	}
	if qty > p.Stock {
		return api.Cart{}, errInsufficientQty
	}
	pc := p
	c.Items = append(c.Items, api.CartItem{ID: uuid.NewString(), ProductID: p.ID, Product: &pc, Quantity: qty, Price: effectivePrice(p)})
	return snapshot(c), nil
}

func (d *data) updateCartItem(userID, itemID string, qty int) (api.Cart, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.cartLocked(userID)
	for i := range c.Items {
		if c.Items[i].ID != itemID {
			continue
		}
		if qty <= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return snapshot(c), nil
		}
		if p, ok := d.productLocked(c.Items[i].ProductID); ok && qty > p.Stock {
			return api.Cart{}, errInsufficientQty
		}
		c.Items[i].Quantity = qty
		return snapshot(c), nil
	}
	return api.Cart{}, errNotFound
}

func (d *data) clearCart(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cartLocked(userID).Items = []api.CartItem{}
}

func snapshot(c *api.Cart) api.Cart {
	out := api.Cart{ID: c.ID, Items: append([]api.CartItem{}, c.Items...)}
	for _, it := range out.Items {
		out.Total += it.Price * float64(it.Quantity)
	}
	return out
}

// createOrder fecha o carrinho: baixa estoque, desconta pontos usados
// (1 ponto = 0.01) e credita 1 ponto por unidade monetária gasta.
func (d *data) createOrder(userID string, in api.CreateOrder, now time.Time) (api.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.cartLocked(userID)
	if len(c.Items) == 0 {
		return api.Order{}, errEmptyCart
	}
	if in.UsePoints > d.points[userID] {
		return api.Order{}, errNotEnoughPoints
	}
	for _, it := range c.Items {
		if p, ok := d.productLocked(it.ProductID); !ok || p.Stock < it.Quantity {
			return api.Order{}, errInsufficientQty
		}
	}

	sum := snapshot(c)
	o := api.Order{
		ID:              uuid.NewString(),
		Status:          "pending",
		PaymentMethod:   in.PaymentMethod,
		ShippingAddress: in.ShippingAddress,
		PointsUsed:      in.UsePoints,
		CreatedAt:       now.UTC(),
	}
	for _, it := range c.Items {
		for i := range d.products {
			if d.products[i].ID == it.ProductID {
				d.products[i].Stock -= it.Quantity
				o.Items = append(o.Items, api.OrderItem{ProductID: it.ProductID, Name: d.products[i].Name, Quantity: it.Quantity, Price: it.Price})
			}
		}
	}
	o.Total = max(0, sum.Total-float64(in.UsePoints)/100)
	o.PointsEarned = int(o.Total)

	d.points[userID] += o.PointsEarned - in.UsePoints
	if in.UsePoints > 0 {
		d.history[userID] = append(d.history[userID], api.PointsEntry{ID: uuid.NewString(), Type: "redeem", Points: -in.UsePoints, Description: "order " + o.ID, CreatedAt: o.CreatedAt})
	}
	if o.PointsEarned > 0 {
		d.history[userID] = append(d.history[userID], api.PointsEntry{ID: uuid.NewString(), Type: "earn", Points: o.PointsEarned, Description: "order " + o.ID, CreatedAt: o.CreatedAt})
	}
	d.orders[userID] = append(d.orders[userID], o)
	c.Items = []api.CartItem{}
	return o, nil
}

func (d *data) listOrders(userID string) []api.Order {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]api.Order{}, d.orders[userID]...)
}

func (d *data) order(userID, id string) (api.Order, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range d.orders[userID] {
		if o.ID == id {
			return o, true
		}
	}
	return api.Order{}, false
}

func (d *data) cancelOrder(userID, id string) (api.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.orders[userID] {
		o := &d.orders[userID][i]
		if o.ID != id {
			continue
		}
		if o.Status != "pending" {
			return api.Order{}, errNotCancellable
		}
		o.Status = "cancelled"
		d.points[userID] += o.PointsUsed - o.PointsEarned
		return *o, nil
	}
	return api.Order{}, errNotFound
}

func (d *data) loyalty(userID string) (api.Points, []api.PointsEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	bal := d.points[userID]
	return api.Points{Balance: bal, Tier: tierFor(bal)}, append([]api.PointsEntry{}, d.history[userID]...)
}

func (d *data) grantPoints(userID string, pts int, why string, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.points[userID] += pts
	d.history[userID] = append(d.history[userID], api.PointsEntry{ID: uuid.NewString(), Type: "bonus", Points: pts, Description: why, CreatedAt: now.UTC()})
}

func tierFor(balance int) string {
	switch {
	case balance >= 5000:
		return "gold"
	case balance >= 1000:
		return "silver"
	default:
		return "bronze"
	}
}
