package cli

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"mosspay/pkg/advisor"
	"mosspay/pkg/cart"
	"mosspay/pkg/client"
	"mosspay/pkg/tui"
)

func registerConsumer(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("register-consumer", env)
	var in client.ConsumerSignup
	set.StringVar(&in.FullName, "name", "", "full name")
	set.StringVar(&in.Phone, "phone", "", "10-digit phone number")
	set.StringVar(&in.DOB, "dob", "", "date of birth, YYYY-MM-DD")
	if err := parseSub(set, args); err != nil {
		return err
	}
	in.Email, in.Password = g.email, g.password
	c, err := connect(g)
	if err != nil {
		return err
	}
	msg, err := c.RegisterConsumer(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, msg)
	return nil
}

func registerVendor(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("register-vendor", env)
	var in client.VendorSignup
	set.StringVar(&in.BusinessName, "business", "", "business name")
	set.StringVar(&in.ContactName, "contact", "", "contact person")
	set.StringVar(&in.Mobile, "mobile", "", "mobile number")
	set.StringVar(&in.UdyamID, "udyam", "", "Udyam registration id")
	set.StringVar(&in.Address, "address", "", "shop address")
	if err := parseSub(set, args); err != nil {
		return err
	}
	in.Email, in.Password = g.email, g.password
	c, err := connect(g)
	if err != nil {
		return err
	}
	msg, err := c.RegisterVendor(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, msg)
	return nil
}

func listBills(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("bills", env)
	pendingOnly := set.Bool("pending", false, "only bills that can still be logged")
	if err := parseSub(set, args); err != nil {
		return err
	}
	c, err := loginAs(ctx, g, client.RoleConsumer)
	if err != nil {
		return err
	}
	var bills []client.Bill
	if *pendingOnly {
		bills, err = c.PendingBills(ctx)
	} else {
		bills, err = c.Bills(ctx)
	}
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVENDOR\tAMOUNT\tCOINS\tSTATUS")
	for _, b := range bills {
		status := "logged"
		if b.Pending {
			status = "pending"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", b.ID, b.VendorName, b.Amount, b.Coins, status)
	}
	return tw.Flush()
}

func logPurchase(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("log-purchase", env)
	billID := set.Int64("bill", 0, "bill id")
	if err := parseSub(set, args); err != nil {
		return err
	}
	c, err := loginAs(ctx, g, client.RoleConsumer)
	if err != nil {
		return err
	}
	res, err := c.LogPurchase(ctx, *billID)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "%s Balance: %d MossCoins, CO2 saved: %.1f kg\n", res.Message, res.NewBalance, res.NewCO2Saved)
	return nil
}

func listRewards(ctx context.Context, g globals, env Env, args []string) error {
	if err := parseSub(subFlags("rewards", env), args); err != nil {
		return err
	}
	c, err := loginAs(ctx, g, client.RoleConsumer)
	if err != nil {
		return err
	}
	page, err := c.Rewards(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Balance: %d MossCoins\n", page.Balance)
	tw := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOST\tTITLE")
	for _, r := range page.Rewards {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", r.ID, r.Cost, r.Title)
	}
	return tw.Flush()
}

func redeem(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("redeem", env)
	rewardID := set.String("reward", "", "reward id, e.g. gov_1 or offer_3")
	if err := parseSub(set, args); err != nil {
		return err
	}
	c, err := loginAs(ctx, g, client.RoleConsumer)
	if err != nil {
		return err
	}
	res, err := c.RedeemReward(ctx, *rewardID)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "%s Balance: %d MossCoins\n", res.Message, res.NewBalance)
	return nil
}

func listItems(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("items", env)
	search := set.String("search", "", "only items whose name contains this text")
	if err := parseSub(set, args); err != nil {
		return err
	}
	c, err := loginAs(ctx, g, client.RoleVendor)
	if err != nil {
		return err
	}
	items, err := c.BillableItems(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tCARBON KG\tSTOCK")
	for _, item := range cart.Filter(items, *search) {
		fmt.Fprintf(tw, "%d\t%s\t₹%s\t%s\t%d\n", item.ID, item.Name, item.Price.StringFixed(2), item.Carbon.String(), item.Stock)
	}
	return tw.Flush()
}

func addItem(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("add-item", env)
	var in client.NewItem
	set.StringVar(&in.Name, "name", "", "item name")
	set.StringVar(&in.Price, "price", "", "unit price")
	set.StringVar(&in.Unit, "unit", "", "unit, e.g. kg or piece")
	set.StringVar(&in.Stock, "stock", "", "units in stock")
	if err := parseSub(set, args); err != nil {
		return err
	}
	c, err := loginAs(ctx, g, client.RoleVendor)
	if err != nil {
		return err
	}
	item, err := c.AddItem(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Added %s (id %d): ₹%.2f per %s, %d in stock, %.1f kg CO2 saved each\n",
		item.Name, item.ID, item.Price, item.Unit, item.Stock, item.CarbonSavedKG)
	return nil
}

func deleteItem(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("delete-item", env)
	id := set.Int64("id", 0, "item id")
	if err := parseSub(set, args); err != nil {
		return err
	}
	c, err := loginAs(ctx, g, client.RoleVendor)
	if err != nil {
		return err
	}
	if err := c.DeleteItem(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Deleted item %d\n", *id)
	return nil
}

// lineFlags collects repeated -item ID=QTY values.
type lineFlags map[int64]int

func (l lineFlags) String() string { return fmt.Sprint(map[int64]int(l)) }

func (l lineFlags) Set(v string) error {
	idText, qtyText, found := strings.Cut(v, "=")
	if !found {
		qtyText = "1"
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idText), 10, 64)
	if err != nil {
		return fmt.Errorf("bad item id %q", idText)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(qtyText))
	if err != nil || qty < 1 {
		return fmt.Errorf("bad quantity %q", qtyText)
	}
	l[id] += qty
	return nil
}

func sendBill(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("send-bill", env)
	number := set.String("phone", "", "customer phone number")
	lines := lineFlags{}
	set.Var(lines, "item", "ID=QTY, repeatable")
	if err := parseSub(set, args); err != nil {
		return err
	}
	c, err := loginAs(ctx, g, client.RoleVendor)
	if err != nil {
		return err
	}
	items, err := c.BillableItems(ctx)
	if err != nil {
		return err
	}
	bill, err := buildCart(items, lines)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, bill.Summary())
	res, err := c.SendBillToPhone(ctx, *number, bill)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "%s (bill %d)\n", res.Message, res.BillID)
	return nil
}

func buildCart(items []cart.Item, lines lineFlags) (*cart.Cart, error) {
	byID := make(map[int64]cart.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	bill := cart.New()
	for id, qty := range lines {
		item, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("Item ID %d not found.", id)
		}
		for i := 0; i < qty; i++ {
			if _, err := bill.Increase(item); err != nil {
				return nil, fmt.Errorf("%s: %w", item.Name, err)
			}
		}
	}
	return bill, nil
}

func billBuilder(ctx context.Context, g globals, env Env, args []string) error {
	if err := parseSub(subFlags("bill", env), args); err != nil {
		return err
	}
	if !env.Interactive {
		return fmt.Errorf("%w: the bill builder needs a terminal", ErrUsage)
	}
	c, err := loginAs(ctx, g, client.RoleVendor)
	if err != nil {
		return err
	}
	return tui.Run(c)
}

func changePassword(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("change-password", env)
	role := set.String("role", "consumer", "consumer or vendor")
	newPassword := set.String("new", "", "new password")
	if err := parseSub(set, args); err != nil {
		return err
	}
	var (
		msg string
		err error
		c   *client.Client
	)
	switch *role {
	case "vendor":
		if c, err = loginAs(ctx, g, client.RoleVendor); err == nil {
			msg, err = c.ChangeVendorPassword(ctx, g.password, *newPassword)
		}
	case "consumer":
		if c, err = loginAs(ctx, g, client.RoleConsumer); err == nil {
			msg, err = c.ChangeConsumerPassword(ctx, g.password, *newPassword)
		}
	default:
		return fmt.Errorf("%w: -role must be consumer or vendor", ErrUsage)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, msg)
	return nil
}

// askAdvisor asks the questions given as arguments, or reads them line by line from stdin.
func askAdvisor(ctx context.Context, g globals, env Env, args []string) error {
	set := subFlags("advisor", env)
	list := set.Bool("list", false, "print the suggested questions")
	if err := parseSub(set, args); err != nil {
		return err
	}
	if *list {
		for i, q := range advisor.Questions() {
			fmt.Fprintf(env.Stdout, "%d. %s\n", i+1, q)
		}
		return nil
	}
	c, err := loginAs(ctx, g, client.RoleConsumer)
	if err != nil {
		return err
	}
	chat, err := advisor.Dial(ctx, c.AdvisorURL(), c.Jar())
	if err != nil {
		return err
	}
	defer chat.Close()

	ask := func(q string) error {
		_, err := chat.Ask(ctx, q, func(m advisor.Message) {
			switch m.Kind {
			case advisor.KindUser:
				fmt.Fprintf(env.Stdout, "you: %s\n", m.Text)
			case advisor.KindTyping:
				fmt.Fprintln(env.Stdout, m.Text)
			default:
				fmt.Fprintf(env.Stdout, "MossPay: %s\n", m.Text)
			}
		})
		return err
	}

	if questions := set.Args(); len(questions) > 0 {
		return ask(strings.Join(questions, " "))
	}
	if env.Stdin == nil {
		return fmt.Errorf("%w: no question given", ErrUsage)
	}
	scanner := bufio.NewScanner(env.Stdin)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if err := ask(q); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func health(ctx context.Context, g globals, env Env, args []string) error {
	if err := parseSub(subFlags("health", env), args); err != nil {
		return err
	}
	c, err := connect(g)
	if err != nil {
		return err
	}
	doc, err := c.Health(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(env.Stdout, "%s: %v\n", k, doc[k])
	}
	return nil
}
