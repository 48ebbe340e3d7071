package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/example/storefront/pkg/client"
	"github.com/example/storefront/pkg/models"
	"github.com/spf13/cobra"
)

func newSignupCmd(a *app) *cobra.Command {
	var req client.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.session.Signup(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s <%s>\n", fullName(user.Name, user.Lastname), user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "first name")
	cmd.Flags().StringVar(&req.Lastname, "lastname", "", "last name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", fullName(user.Name, user.Lastname), user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out, keeping the local cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.session.CurrentUser()
			if err != nil {
				return err
			}
			if user == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", fullName(user.Name, user.Lastname), user.Email)
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var line client.Line
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line.ID = args[0]
			cart, err := a.session.AddToCart(line)
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), cart)
		},
	}
	cmd.Flags().StringVar(&line.Name, "name", "", "product name")
	cmd.Flags().Float64Var(&line.Price, "price", 0, "unit price")
	cmd.Flags().IntVar(&line.Quantity, "qty", 1, "quantity")
	cmd.Flags().StringVar(&line.Image, "image", "", "image path")
	cmd.Flags().StringVar(&line.SelectedSize, "size", "", "size")
	cmd.Flags().StringVar(&line.SelectedColor, "color", "", "color")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newCartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show the cart and its totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cart, err := a.session.Cart()
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), cart)
		},
	}
}

func lineKeyFlags(cmd *cobra.Command, key *client.LineKey) {
	cmd.Flags().StringVar(&key.Size, "size", "", "size of the line")
	cmd.Flags().StringVar(&key.Color, "color", "", "color of the line")
}

func newQtyCmd(a *app) *cobra.Command {
	var key client.LineKey
	cmd := &cobra.Command{
		Use:   "qty <product-id> <quantity>",
		Short: "Change the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			key.ID = args[0]
			cart, err := a.session.UpdateQuantity(key, quantity)
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), cart)
		},
	}
	lineKeyFlags(cmd, &key)
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var key client.LineKey
	cmd := &cobra.Command{
		Use:   "rm <product-id>",
		Short: "Remove a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key.ID = args[0]
			cart, err := a.session.RemoveItem(key)
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), cart)
		},
	}
	lineKeyFlags(cmd, &key)
	return cmd
}

func newCheckoutCmd(a *app) *cobra.Command {
	var form client.CheckoutForm
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := a.session.Checkout(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Order placed successfully")
			return printOrder(cmd.OutOrStdout(), order)
		},
	}
	cmd.Flags().StringVar(&form.FirstName, "first", "", "first name")
	cmd.Flags().StringVar(&form.LastName, "last", "", "last name")
	cmd.Flags().StringVar(&form.Address, "address", "", "shipping address")
	cmd.Flags().StringVar(&form.Phone, "phone", "", "contact phone")
	return cmd
}

func newOrdersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			orders, err := a.session.Orders(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPLACED\tSTATUS\tITEMS\tTOTAL")
			for _, o := range orders {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\n",
					o.ID, o.CreatedAt.Local().Format("2006-01-02 15:04"), o.Status, len(o.Items), o.Total)
			}
			return w.Flush()
		},
	}
}

func newOrderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "order <id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := a.session.Order(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOrder(cmd.OutOrStdout(), order)
		},
	}
}

func printCart(out io.Writer, cart client.Cart) error {
	if cart.IsEmpty() {
		fmt.Fprintln(out, "Cart is empty")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tNAME\tSIZE\tCOLOR\tQTY\tPRICE")
	for _, l := range cart {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2f\n", l.ID, l.Name, l.SelectedSize, l.SelectedColor, l.Quantity, l.Price)
	}
	s := cart.Summary()
	fmt.Fprintf(w, "\t\t\t\tSubtotal\t%.2f\n", s.Subtotal)
	fmt.Fprintf(w, "\t\t\t\tShipping\t%.2f\n", s.Shipping)
	fmt.Fprintf(w, "\t\t\t\tTotal\t%.2f\n", s.Total)
	return w.Flush()
}

func printOrder(out io.Writer, o *models.Order) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Order\t%s\n", o.ID)
	fmt.Fprintf(w, "Status\t%s\n", o.Status)
	fmt.Fprintf(w, "Customer\t%s (%s)\n", o.CustomerName, o.CustomerPhone)
	fmt.Fprintf(w, "Address\t%s\n", o.Address)
	for _, it := range o.Items {
		fmt.Fprintf(w, "  %d x %s\t%.2f\n", it.Quantity, it.Name, it.Price)
	}
	fmt.Fprintf(w, "Subtotal\t%.2f\n", o.Subtotal)
	fmt.Fprintf(w, "Shipping\t%.2f\n", o.Shipping)
	fmt.Fprintf(w, "Total\t%.2f\n", o.Total)
	return w.Flush()
}
