package main

import (
	"errors"
	"fmt"
	"strconv"

	"storefront-client/api"
	"storefront-client/client"
	"storefront-client/client/domain"
	"storefront-client/internal/config"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const appName = "storefront"

func newRootCmd() *cobra.Command {
	var (
		envFile string
		banner  bool
		a       *app
	)

	root := &cobra.Command{
		Use:           appName,
		Short:         "Storefront API client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if banner {
				figure.NewFigure(appName, "cybermedium", true).Print()
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			a, err = newApp(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.logStats()
				a.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	root.PersistentFlags().BoolVar(&banner, "banner", false, "print the banner")

	// os subcomandos leem `a` só depois do PersistentPreRunE
	get := func() *app { return a }

	root.AddCommand(
		loginCmd(get),
		registerCmd(get),
		logoutCmd(get),
		whoamiCmd(get),
		productsCmd(get),
		productCmd(get),
		cartCmd(get),
		cartAddCmd(get),
		ordersCmd(get),
		pointsCmd(get),
		dashboardCmd(get),
	)
	return root
}

func loginCmd(get func() *app) *cobra.Command {
	var email, password, google string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email/password or a Google credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			var (
				u   *domain.User
				err error
			)
			if google != "" {
				u, err = a.shop.Auth.GoogleSignIn(cmd.Context(), google)
			} else {
				u, err = a.shop.Auth.Login(cmd.Context(), email, password)
			}
			if err != nil {
				return display(err)
			}
			return a.printJSON(u)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&google, "google", "", "Google credential (skips email/password)")
	return cmd
}

func registerCmd(get func() *app) *cobra.Command {
	var in api.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			u, err := a.shop.Auth.Register(cmd.Context(), in)
			if err != nil {
				return display(err)
			}
			return a.printJSON(u)
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	return cmd
}

func logoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return display(get().shop.Auth.Logout(cmd.Context()))
		},
	}
}

func whoamiCmd(get func() *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if remote {
				u, err := a.shop.Auth.Me(cmd.Context())
				if err != nil {
					return display(err)
				}
				return a.printJSON(u)
			}
			sess, err := a.client.Session(cmd.Context())
			if err != nil {
				return err
			}
			if !sess.Valid() {
				return errors.New("not signed in")
			}
			return a.printJSON(map[string]any{"user": sess.User, "expiresAt": sess.ExpiresAt})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the profile from the backend")
	return cmd
}

func productsCmd(get func() *app) *cobra.Command {
	var f api.ProductFilter
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			page, err := a.shop.Products.List(cmd.Context(), f)
			if err != nil {
				return display(err)
			}
			return a.printJSON(page)
		},
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "category slug")
	cmd.Flags().StringVar(&f.Search, "search", "", "search text")
	cmd.Flags().Float64Var(&f.MinPrice, "min-price", 0, "minimum price")
	cmd.Flags().Float64Var(&f.MaxPrice, "max-price", 0, "maximum price")
	cmd.Flags().StringVar(&f.Sort, "sort", "", "price_asc, price_desc, newest or rating")
	cmd.Flags().IntVar(&f.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "page size")
	return cmd
}

func productCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "product <id-or-slug>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			p, err := a.shop.Products.Get(cmd.Context(), args[0])
			if err != nil {
				return display(err)
			}
			return a.printJSON(p)
		},
	}
}

func cartCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show the cart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			c, err := a.shop.Cart.Get(cmd.Context())
			if err != nil {
				return display(err)
			}
			return a.printJSON(c)
		},
	}
}

func cartAddCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cart-add <product-id> [quantity]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := 1
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid quantity %q", args[1])
				}
				qty = n
			}
			a := get()
			c, err := a.shop.Cart.Add(cmd.Context(), args[0], qty)
			if err != nil {
				return display(err)
			}
			return a.printJSON(c)
		},
	}
}

func ordersCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders [id]",
		Short: "List orders, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if len(args) == 1 {
				o, err := a.shop.Orders.Get(cmd.Context(), args[0])
				if err != nil {
					return display(err)
				}
				return a.printJSON(o)
			}
			list, err := a.shop.Orders.List(cmd.Context())
			if err != nil {
				return display(err)
			}
			return a.printJSON(list)
		},
	}
}

func pointsCmd(get func() *app) *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Show the loyalty balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if history {
				h, err := a.shop.Loyalty.History(cmd.Context())
				if err != nil {
					return display(err)
				}
				return a.printJSON(h)
			}
			p, err := a.shop.Loyalty.Points(cmd.Context())
			if err != nil {
				return display(err)
			}
			return a.printJSON(p)
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "show the points history")
	return cmd
}

// dashboardCmd busca carrinho, pedidos e pontos em paralelo, como a página
// de conta faz. Com o token expirado, os três 401 dividem um único refresh.
func dashboardCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Fetch cart, orders and points concurrently",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			var (
				cart   api.Cart
				orders []api.Order
				points api.Points
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) { cart, err = a.shop.Cart.Get(ctx); return })
			g.Go(func() (err error) { orders, err = a.shop.Orders.List(ctx); return })
			g.Go(func() (err error) { points, err = a.shop.Loyalty.Points(ctx); return })
			if err := g.Wait(); err != nil {
				return display(err)
			}
			return a.printJSON(map[string]any{"cart": cart, "orders": orders, "points": points})
		},
	}
}

// display troca o erro pela mensagem pensada para o usuário.
func display(err error) error {
	if err == nil {
		return nil
	}
	ne, ok := client.AsNormalized(err)
	if !ok {
		return err
	}
	msg := ne.DisplayMessage(false)
	if ne.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, ne.StatusCode)
	}
	if client.IsSessionInvalidated(err) {
		msg += "; run `storefront login` again"
	}
	return errors.New(msg)
}
