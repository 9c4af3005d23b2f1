package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/warp/laundry-ledger/admin"
	"github.com/warp/laundry-ledger/aggregate"
	"github.com/warp/laundry-ledger/ledger"
	"github.com/warp/laundry-ledger/linen"
	"github.com/warp/laundry-ledger/report"
)

type command func(ctx context.Context, a *app, args []string, out io.Writer) error

var commands = map[string]command{
	"signin":         cmdSignIn,
	"signout":        cmdSignOut,
	"whoami":         cmdWhoAmI,
	"create":         cmdCreate,
	"list":           cmdList,
	"dashboard":      cmdDashboard,
	"report":         cmdReport,
	"batch":          cmdBatch,
	"units":          cmdUnits,
	"clothing-types": cmdClothingTypes,
	"users":          cmdUsers,
	"unit-add":       cmdUnitAdd,
	"unit-rename":    cmdUnitRename,
	"unit-rm":        cmdUnitRemove,
	"type-add":       cmdTypeAdd,
	"type-rename":    cmdTypeRename,
	"type-rm":        cmdTypeRemove,
	"user-add":       cmdUserAdd,
	"user-set":       cmdUserSet,
	"user-rm":        cmdUserRemove,
}

func usage(out io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, "usage: rolctl <command> [flags]")
	fmt.Fprintln(out, "commands:")
	for _, name := range names {
		fmt.Fprintln(out, "  "+name)
	}
}

func newFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

// =============================================================================
// SESSION
// =============================================================================

func cmdSignIn(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("signin", out)
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", "", "account secret")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.identity.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in as %s (%s)\n", *email, p.Role)
	return nil
}

func cmdSignOut(ctx context.Context, a *app, _ []string, out io.Writer) error {
	if err := a.identity.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "signed out")
	return nil
}

func cmdWhoAmI(ctx context.Context, a *app, _ []string, out io.Writer) error {
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	u, err := a.entities.User(ctx, p.UserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s <%s>\nrole:   %s\nunit:   %s\nsector: %s\n",
		u.Name, u.Email, p.Role, a.unitName(ctx, p.UnitID), p.Sector)
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

// itemFlags collects repeated -item TYPE:QTY:WEIGHT values.
type itemFlags []string

func (f *itemFlags) String() string { return strings.Join(*f, ",") }

func (f *itemFlags) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func cmdCreate(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("create", out)
	var items itemFlags
	fs.Var(&items, "item", "TYPE:QTY:WEIGHT, TYPE is a clothing type id or name (repeatable)")
	clientSig := fs.String("client-signature", "", "client signature image file")
	laundrySig := fs.String("laundry-signature", "", "laundry signature image file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	types, err := a.entities.ClothingTypes(ctx)
	if err != nil {
		return err
	}

	req := ledger.CreateRequest{}
	for i, raw := range items {
		in, err := parseItem(raw, types)
		if err != nil {
			return &linen.ValidationError{Field: fmt.Sprintf("items[%d]", i), Reason: err.Error()}
		}
		req.Items = append(req.Items, in)
	}
	if req.ClientSignature, err = dataURL(*clientSig); err != nil {
		return err
	}
	if req.LaundrySignature, err = dataURL(*laundrySig); err != nil {
		return err
	}

	rol, err := a.ledger.CreateROL(ctx, p, req)
	if err != nil {
		return err
	}
	t := rol.Totals()
	fmt.Fprintf(out, "ROL %s created: %d items, %d pieces, %s kg\n",
		rol.Number, len(rol.Items), t.Quantity, t.Weight.StringFixed(2))
	return nil
}

// parseItem splits from the right so clothing type names may contain ':'.
func parseItem(raw string, types []linen.ClothingType) (ledger.ItemInput, error) {
	rest, weight, ok := cutLast(raw)
	if !ok {
		return ledger.ItemInput{}, fmt.Errorf("want TYPE:QTY:WEIGHT, got %q", raw)
	}
	name, qty, ok := cutLast(rest)
	if !ok {
		return ledger.ItemInput{}, fmt.Errorf("want TYPE:QTY:WEIGHT, got %q", raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return ledger.ItemInput{}, fmt.Errorf("quantity %q is not a number", qty)
	}
	w, err := decimal.NewFromString(strings.TrimSpace(weight))
	if err != nil {
		return ledger.ItemInput{}, fmt.Errorf("weight %q is not a number", weight)
	}
	return ledger.ItemInput{ClothingTypeID: clothingTypeID(name, types), Quantity: n, Weight: w}, nil
}

func cutLast(s string) (before, after string, ok bool) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// clothingTypeID resolves a name to an id. Unknown values pass through and
// are rejected by the ledger.
func clothingTypeID(ref string, types []linen.ClothingType) string {
	ref = strings.TrimSpace(ref)
	for _, ct := range types {
		if ct.ID == ref {
			return ct.ID
		}
	}
	for _, ct := range types {
		if strings.EqualFold(ct.Name, ref) {
			return ct.ID
		}
	}
	return ref
}

// dataURL reads an image file into the stored signature form.
func dataURL(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read signature: %w", err)
	}
	mime := http.DetectContentType(raw)
	if mime != "image/png" && mime != "image/jpeg" {
		return "", &linen.ValidationError{Field: "signature", Reason: fmt.Sprintf("%s is %s, want png or jpeg", path, mime)}
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// filterFlags registers the list-screen filters on fs.
func filterFlags(fs *flag.FlagSet) func() (aggregate.Filter, error) {
	window := fs.String("window", "all", "today, 7d, 30d, all or YYYY-MM")
	unit := fs.String("unit", "", "unit id")
	sector := fs.String("sector", "", "Clean or Dirty")
	search := fs.String("search", "", "match ROL number or clothing type")
	return func() (aggregate.Filter, error) {
		w, err := aggregate.ParseWindow(*window)
		if err != nil {
			return aggregate.Filter{}, err
		}
		f := aggregate.Filter{Window: w, UnitID: *unit, Sector: linen.Sector(*sector), Search: *search}
		if f.Sector != "" && !f.Sector.Valid() {
			return f, &linen.ValidationError{Field: "sector", Reason: "must be one of Clean Dirty"}
		}
		return f, nil
	}
}

func cmdList(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("list", out)
	filter := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := filter()
	if err != nil {
		return err
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	rols, err := a.engine.Query(ctx, p, f)
	if err != nil {
		return err
	}

	units := a.unitNames(ctx)
	tw := table(out)
	fmt.Fprintln(tw, "NUMBER\tDATE\tUNIT\tSECTOR\tITEMS\tQTY\tWEIGHT")
	for _, r := range rols {
		t := r.Totals()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.Number, r.Date.In(a.engine.Location()).Format(report.DateLayout),
			nameOr(units, r.UnitID, linen.UnknownUnitLabel), r.Sector,
			len(r.Items), t.Quantity, t.Weight.StringFixed(2))
	}
	sum := linen.SumTotals(rols)
	fmt.Fprintf(tw, "TOTAL\t%d records\t\t\t\t%d\t%s\n", len(rols), sum.Quantity, sum.Weight.StringFixed(2))
	return tw.Flush()
}

func cmdDashboard(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("dashboard", out)
	month := fs.String("month", "", "YYYY-MM, defaults to the current month")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w, err := aggregate.ParseWindow(*month)
	if err != nil {
		return err
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	d, err := a.engine.Dashboard(ctx, p, w)
	if err != nil {
		return err
	}

	tw := table(out)
	fmt.Fprintf(tw, "Today\t%d ROLs\t%d pieces\t%s kg\t%d units\n",
		d.Today.Records, d.Today.Totals.Quantity, d.Today.Totals.Weight.StringFixed(2), d.Today.ActiveUnits)
	fmt.Fprintf(tw, "%s\t%d ROLs\t%d pieces\t%s kg\t%d units\n",
		d.MonthLabel, d.Month.Records, d.Month.Totals.Quantity, d.Month.Totals.Weight.StringFixed(2), d.Month.ActiveUnits)
	fmt.Fprintf(tw, "Visible\t%d ROLs\n", d.VisibleROLs)
	if d.Reference != nil {
		fmt.Fprintf(tw, "Reference\t%d units\t%d clothing types\t%d users\n",
			d.Reference.Units, d.Reference.ClothingTypes, d.Reference.Users)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "UNIT (%s)\tROLS\tQTY\tWEIGHT\n", d.MonthLabel)
	for _, g := range d.MonthByUnit {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", g.Unit.Name, len(g.Records), g.Totals.Quantity, g.Totals.Weight.StringFixed(2))
	}
	return tw.Flush()
}

// =============================================================================
// REPORTS
// =============================================================================

func cmdReport(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("report", out)
	number := fs.String("number", "", "ROL number, e.g. 000001")
	format := fs.String("format", "pdf", "pdf or xlsx")
	path := fs.String("out", "", "output file, defaults to ROL_<number>.<format>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *number == "" {
		return &linen.ValidationError{Field: "number", Reason: "is required"}
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	doc, err := a.reports.Single(ctx, p, padNumber(*number))
	if err != nil {
		return err
	}
	if *path == "" {
		*path = fmt.Sprintf("ROL_%s.%s", padNumber(*number), *format)
	}
	return a.write(doc, *format, *path, out)
}

func cmdBatch(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("batch", out)
	filter := filterFlags(fs)
	format := fs.String("format", "pdf", "pdf or xlsx")
	path := fs.String("out", "", "output file, defaults to ROL_report.<format>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := filter()
	if err != nil {
		return err
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	doc, err := a.reports.Batch(ctx, p, f)
	if err != nil {
		return err
	}
	if *path == "" {
		*path = "ROL_report." + *format
	}
	return a.write(doc, *format, *path, out)
}

func (a *app) write(doc report.Document, format, path string, out io.Writer) error {
	data, err := a.render(doc, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(out, "%s written to %s\n", doc.Title, path)
	return nil
}

// padNumber accepts "7" for "000007".
func padNumber(s string) string {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return linen.FormatNumber(n)
	}
	return s
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func cmdUnits(ctx context.Context, a *app, _ []string, out io.Writer) error {
	units, err := a.admin.Units(ctx)
	if err != nil {
		return err
	}
	tw := table(out)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, u := range units {
		fmt.Fprintf(tw, "%s\t%s\n", u.ID, u.Name)
	}
	return tw.Flush()
}

func cmdClothingTypes(ctx context.Context, a *app, _ []string, out io.Writer) error {
	types, err := a.admin.ClothingTypes(ctx)
	if err != nil {
		return err
	}
	tw := table(out)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, ct := range types {
		fmt.Fprintf(tw, "%s\t%s\n", ct.ID, ct.Name)
	}
	return tw.Flush()
}

func cmdUsers(ctx context.Context, a *app, _ []string, out io.Writer) error {
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	users, err := a.admin.Users(ctx, p)
	if err != nil {
		return err
	}
	units := a.unitNames(ctx)
	tw := table(out)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tUNIT\tSECTOR")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Name, u.Email, u.Role, nameOr(units, u.UnitID, linen.UnknownUnitLabel), u.Sector)
	}
	return tw.Flush()
}

func cmdUnitAdd(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("unit-add", out)
	name := fs.String("name", "", "unit name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	u, err := a.admin.CreateUnit(ctx, p, admin.UnitInput{Name: *name})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "unit %s created: %s\n", u.ID, u.Name)
	return nil
}

func cmdUnitRename(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("unit-rename", out)
	id := fs.String("id", "", "unit id")
	name := fs.String("name", "", "new name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	u, err := a.admin.UpdateUnit(ctx, p, *id, admin.UnitInput{Name: *name})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "unit %s renamed to %s\n", u.ID, u.Name)
	return nil
}

func cmdUnitRemove(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("unit-rm", out)
	id := fs.String("id", "", "unit id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	if err := a.admin.DeleteUnit(ctx, p, *id); err != nil {
		return err
	}
	fmt.Fprintf(out, "unit %s deleted\n", *id)
	return nil
}

func cmdTypeAdd(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("type-add", out)
	name := fs.String("name", "", "clothing type name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	ct, err := a.admin.CreateClothingType(ctx, p, admin.ClothingTypeInput{Name: *name})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "clothing type %s created: %s\n", ct.ID, ct.Name)
	return nil
}

func cmdTypeRename(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("type-rename", out)
	id := fs.String("id", "", "clothing type id")
	name := fs.String("name", "", "new name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	ct, err := a.admin.UpdateClothingType(ctx, p, *id, admin.ClothingTypeInput{Name: *name})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "clothing type %s renamed to %s\n", ct.ID, ct.Name)
	return nil
}

func cmdTypeRemove(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("type-rm", out)
	id := fs.String("id", "", "clothing type id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	if err := a.admin.DeleteClothingType(ctx, p, *id); err != nil {
		return err
	}
	fmt.Fprintf(out, "clothing type %s deleted\n", *id)
	return nil
}

func cmdUserAdd(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("user-add", out)
	in := admin.UserInput{}
	fs.StringVar(&in.Name, "name", "", "display name")
	fs.StringVar(&in.Email, "email", "", "e-mail")
	fs.StringVar(&in.Password, "password", "", "initial secret")
	role := fs.String("role", string(linen.RoleUser), "admin, supervisor or user")
	fs.StringVar(&in.UnitID, "unit", "", "unit id")
	sector := fs.String("sector", string(linen.SectorClean), "Clean or Dirty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	in.Role, in.Sector = linen.Role(*role), linen.Sector(*sector)

	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	u, err := a.admin.CreateUser(ctx, p, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "user %s created: %s <%s>\n", u.ID, u.Name, u.Email)
	return nil
}

func cmdUserSet(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("user-set", out)
	id := fs.String("id", "", "user id")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "e-mail")
	password := fs.String("password", "", "new secret")
	role := fs.String("role", "", "admin, supervisor or user")
	unit := fs.String("unit", "", "unit id")
	sector := fs.String("sector", "", "Clean or Dirty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only flags given on the command line become part of the update.
	upd := admin.UserUpdate{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			upd.Name = name
		case "email":
			upd.Email = email
		case "password":
			upd.Password = password
		case "role":
			r := linen.Role(*role)
			upd.Role = &r
		case "unit":
			upd.UnitID = unit
		case "sector":
			s := linen.Sector(*sector)
			upd.Sector = &s
		}
	})

	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	u, err := a.admin.UpdateUser(ctx, p, *id, upd)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "user %s updated\n", u.ID)
	return nil
}

func cmdUserRemove(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("user-rm", out)
	id := fs.String("id", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.principal(ctx)
	if err != nil {
		return err
	}
	if err := a.admin.DeleteUser(ctx, p, *id); err != nil {
		return err
	}
	fmt.Fprintf(out, "user %s deleted\n", *id)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (a *app) unitNames(ctx context.Context) map[string]string {
	names := map[string]string{}
	units, err := a.entities.Units(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("list units")
		return names
	}
	for _, u := range units {
		names[u.ID] = u.Name
	}
	return names
}

func (a *app) unitName(ctx context.Context, id string) string {
	return nameOr(a.unitNames(ctx), id, linen.UnknownUnitLabel)
}

func nameOr(names map[string]string, id, placeholder string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return placeholder
}
