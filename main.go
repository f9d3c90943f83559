package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-catalog/auth"
	"library-catalog/config"
	"library-catalog/library"
)

func main() {
	a := &app{}
	if err := a.rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what the commands share: the resolved config and the coordinator
// every command talks to. The auth service is opened only by the commands
// that need it.
type app struct {
	cfg   config.Config
	coord *library.Coordinator
}

// open builds the stores and coordinator, seeding the sample catalog on the
// very first run (empty catalog at startup).
func (a *app) open(cmd *cobra.Command, args []string) error {
	a.cfg = config.Load()

	catalog, err := library.NewCatalogStore(a.cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	copies, err := library.NewCopyStore(a.cfg.CopiesFile)
	if err != nil {
		return fmt.Errorf("open copy store: %w", err)
	}
	a.coord = library.NewCoordinator(catalog, copies)

	if a.coord.Statistics().Titles == 0 {
		if err := a.coord.ImportSampleData(); err != nil {
			return fmt.Errorf("seed sample data: %w", err)
		}
		fmt.Println("Empty catalog: seeded sample data.")
	}
	return nil
}

func (a *app) users() (*auth.Service, error) {
	return auth.Open(a.cfg.UsersFile)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "librarian",
		Short:             "Manage the library catalog and lending of physical copies",
		PersistentPreRunE: a.open,
		SilenceUsage:      true,
	}
	root.AddCommand(
		a.addCmd(), a.listCmd(), a.searchCmd(), a.showCmd(), a.updateCmd(), a.removeCmd(),
		a.copiesCmd(),
		a.borrowCmd(), a.returnCmd(), a.renewCmd(), a.dueCmd(), a.loansCmd(),
		a.statsCmd(), a.exportCmd(), a.importCmd(),
		a.registerCmd(), a.loginCmd(), a.passwdCmd(),
	)
	return root
}

// --- catalog commands ---

func (a *app) addCmd() *cobra.Command {
	var t library.Title
	var acquired string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a title to the catalog (seeds copy #1)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !library.ValidLocation(t.Location) {
				return fmt.Errorf("location must be one of: %s", strings.Join(library.Locations, ", "))
			}
			if t.Price < 0 {
				return fmt.Errorf("price must not be negative")
			}
			t.AcquiredDate = library.ParseDate(acquired)
			if err := a.coord.AddTitle(t); err != nil {
				return err
			}
			fmt.Printf("Added %s (%s) with copy %s\n", t.TitleID, t.Name, library.CopyIDFor(t.TitleID, 1))
			return nil
		},
	}
	cmd.Flags().StringVar(&t.TitleID, "id", "", "title id, e.g. CS001")
	cmd.Flags().StringVar(&t.Name, "name", "", "title name")
	cmd.Flags().StringVar(&t.Author, "author", "", "author")
	cmd.Flags().StringVar(&t.Publisher, "publisher", "", "publisher")
	cmd.Flags().StringVar(&t.Location, "location", library.Locations[0], "storage site")
	cmd.Flags().StringVar(&t.Category, "category", "", "category label")
	cmd.Flags().Float64Var(&t.Price, "price", 0, "price")
	cmd.Flags().StringVar(&acquired, "acquired", "", "acquisition date yyyy-mm-dd (default today)")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var category, location, sortKey string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch sortKey {
			case "":
			case "name":
				a.coord.SortByName()
			case "category":
				a.coord.SortByCategory()
			case "location":
				a.coord.SortByLocation()
			case "price":
				a.coord.SortByPrice()
			case "loans":
				a.coord.SortByLoanCount()
			case "date":
				a.coord.SortByAcquiredDate()
			default:
				return fmt.Errorf("unknown sort key %q (name, category, location, price, loans, date)", sortKey)
			}

			var titles []library.Title
			switch {
			case category != "":
				titles = a.coord.TitlesByCategory(category)
			case location != "":
				titles = a.coord.TitlesByLocation(location)
			default:
				titles = a.coord.Titles()
			}
			printTitles(a.coord, titles)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by exact category")
	cmd.Flags().StringVar(&location, "location", "", "filter by exact storage site")
	cmd.Flags().StringVar(&sortKey, "sort", "", "sort by: name, category, location, price, loans, date")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Search titles by name, category, location or id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printTitles(a.coord, a.coord.SearchTitles(args[0]))
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show TITLE_ID",
		Short: "Show a title and all of its copies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := a.coord.Title(args[0])
			if !ok {
				return fmt.Errorf("title %q: %w", args[0], library.ErrNotFound)
			}
			fmt.Printf("%s  %s by %s (%s)\n", t.TitleID, t.Name, t.Author, t.Publisher)
			fmt.Printf("  %s | %s | %.2f | acquired %s | %d loans\n",
				t.Location, t.Category, t.Price, t.AcquiredDate, t.LoanCount)
			printCopies(a.coord.CopiesOf(t.TitleID))
			return nil
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	var newID, name, author, publisher, location, category, acquired string
	var price float64
	cmd := &cobra.Command{
		Use:   "update TITLE_ID",
		Short: "Update a title's fields (only flags given are changed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := a.coord.Title(args[0])
			if !ok {
				return fmt.Errorf("title %q: %w", args[0], library.ErrNotFound)
			}
			if cmd.Flags().Changed("new-id") {
				t.TitleID = newID
			}
			if cmd.Flags().Changed("name") {
				t.Name = name
			}
			if cmd.Flags().Changed("author") {
				t.Author = author
			}
			if cmd.Flags().Changed("publisher") {
				t.Publisher = publisher
			}
			if cmd.Flags().Changed("location") {
				if !library.ValidLocation(location) {
					return fmt.Errorf("location must be one of: %s", strings.Join(library.Locations, ", "))
				}
				t.Location = location
			}
			if cmd.Flags().Changed("category") {
				t.Category = category
			}
			if cmd.Flags().Changed("price") {
				if price < 0 {
					return fmt.Errorf("price must not be negative")
				}
				t.Price = price
			}
			if cmd.Flags().Changed("acquired") {
				t.AcquiredDate = library.ParseDate(acquired)
			}
			if err := a.coord.UpdateTitle(args[0], t); err != nil {
				return err
			}
			fmt.Printf("Updated %s\n", t.TitleID)
			return nil
		},
	}
	cmd.Flags().StringVar(&newID, "new-id", "", "rename the title id (copies follow)")
	cmd.Flags().StringVar(&name, "name", "", "title name")
	cmd.Flags().StringVar(&author, "author", "", "author")
	cmd.Flags().StringVar(&publisher, "publisher", "", "publisher")
	cmd.Flags().StringVar(&location, "location", "", "storage site")
	cmd.Flags().StringVar(&category, "category", "", "category label")
	cmd.Flags().Float64Var(&price, "price", 0, "price")
	cmd.Flags().StringVar(&acquired, "acquired", "", "acquisition date yyyy-mm-dd")
	return cmd
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove TITLE_ID",
		Short: "Remove a title and all its copies (refused while on loan)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.coord.RemoveTitle(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		},
	}
}

// --- copy commands ---

func (a *app) copiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copies",
		Short: "Manage physical copies of a title",
	}

	var count int
	add := &cobra.Command{
		Use:   "add TITLE_ID",
		Short: "Add copies to a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := a.coord.AddCopies(args[0], count)
			for _, cp := range added {
				fmt.Printf("Added copy %s\n", cp.CopyID)
			}
			return err
		},
	}
	add.Flags().IntVar(&count, "count", 1, "number of copies to add")

	remove := &cobra.Command{
		Use:   "remove COPY_ID",
		Short: "Remove a copy (refused while on loan)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.coord.RemoveCopy(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed copy %s\n", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list TITLE_ID",
		Short: "List all copies of a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printCopies(a.coord.CopiesOf(args[0]))
			return nil
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}

// --- lending commands ---

func (a *app) borrowCmd() *cobra.Command {
	var borrower, due string
	cmd := &cobra.Command{
		Use:   "borrow TITLE_ID",
		Short: "Borrow the lowest-numbered available copy of a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, err := a.coord.BorrowTitle(args[0], borrower, library.ParseDate(due))
			if err != nil {
				return err
			}
			fmt.Printf("Lent copy %s to %s, due %s\n", cp.CopyID, cp.BorrowedBy, cp.DueDate)
			return nil
		},
	}
	cmd.Flags().StringVar(&borrower, "borrower", "", "borrower username")
	cmd.Flags().StringVar(&due, "due", "", "due date yyyy-mm-dd (default today + 30 days)")
	cmd.MarkFlagRequired("borrower")
	return cmd
}

func (a *app) returnCmd() *cobra.Command {
	var borrower string
	cmd := &cobra.Command{
		Use:   "return COPY_ID",
		Short: "Return a borrowed copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.coord.ReturnCopy(args[0], borrower); err != nil {
				return err
			}
			fmt.Printf("Returned copy %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&borrower, "borrower", "", "borrower username")
	cmd.MarkFlagRequired("borrower")
	return cmd
}

func (a *app) renewCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "renew COPY_ID",
		Short: "Extend a loan's due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.coord.RenewCopy(args[0], days); err != nil {
				return err
			}
			fmt.Printf("Renewed copy %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", library.DefaultLoanDays, "days to extend by")
	return cmd
}

func (a *app) dueCmd() *cobra.Command {
	var within int
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List loaned copies due within a lookahead window",
		RunE: func(cmd *cobra.Command, args []string) error {
			printCopies(a.coord.DueSoon(within))
			return nil
		},
	}
	cmd.Flags().IntVar(&within, "within", 7, "lookahead window in days")
	return cmd
}

func (a *app) loansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loans BORROWER",
		Short: "List the copies a borrower currently holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printCopies(a.coord.BorrowedBy(args[0]))
			return nil
		},
	}
}

// --- aggregate / snapshot commands ---

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog-wide statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.coord.Statistics()
			fmt.Printf("Titles:            %d\n", st.Titles)
			fmt.Printf("Copies:            %d (%d available, %d on loan)\n",
				st.Copies, st.AvailableCopies, st.BorrowedCopies)
			fmt.Printf("Inventory value:   %.2f\n", st.TotalValue)
			fmt.Printf("Popular category:  %s\n", st.PopularCategory)
			fmt.Printf("Popular location:  %s\n", st.PopularLocation)
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export PATH",
		Short: "Export the catalog to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.coord.ExportSnapshot(args[0]); err != nil {
				return err
			}
			fmt.Printf("Exported catalog to %s\n", args[0])
			return nil
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import PATH",
		Short: "Import titles from a file (existing ids are skipped)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := a.coord.ImportSnapshot(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d new titles\n", added)
			return nil
		},
	}
}

// --- account commands ---

func (a *app) registerCmd() *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "register USERNAME",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.users()
			if err != nil {
				return err
			}
			defer users.Close()

			password, err := readPassword("Choose a password: ")
			if err != nil {
				return err
			}
			role := auth.RoleStudent
			if admin {
				role = auth.RoleAdmin
			}
			if err := users.Register(args[0], password, role); err != nil {
				return err
			}
			fmt.Printf("Registered %s (%s)\n", args[0], role)
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login USERNAME",
		Short: "Verify credentials and show the session identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.users()
			if err != nil {
				return err
			}
			defer users.Close()

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			session, err := users.Login(args[0], password)
			if err != nil {
				return err
			}
			a.coord.SetSession(session)
			role := "student"
			if session.Privileged {
				role = "admin"
			}
			fmt.Printf("Welcome, %s (%s)\n", session.Username, role)
			return nil
		},
	}
}

func (a *app) passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd USERNAME",
		Short: "Change a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.users()
			if err != nil {
				return err
			}
			defer users.Close()

			oldPassword, err := readPassword("Current password: ")
			if err != nil {
				return err
			}
			newPassword, err := readPassword("New password: ")
			if err != nil {
				return err
			}
			if err := users.ResetPassword(args[0], oldPassword, newPassword); err != nil {
				return err
			}
			fmt.Println("Password updated.")
			return nil
		},
	}
}

// --- helpers ---

// readPassword reads a password with terminal echo disabled.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func printTitles(coord *library.Coordinator, titles []library.Title) {
	if len(titles) == 0 {
		fmt.Println("No titles found.")
		return
	}
	fmt.Printf("%-8s %-40s %-22s %-20s %-16s %8s %10s %6s %s\n",
		"ID", "Name", "Author", "Location", "Category", "Price", "Acquired", "Loans", "Copies")
	for _, t := range titles {
		fmt.Printf("%-8s %-40s %-22s %-20s %-16s %8.2f %10s %6d %d/%d\n",
			t.TitleID, truncate(t.Name, 40), truncate(t.Author, 22), t.Location, t.Category,
			t.Price, t.AcquiredDate, t.LoanCount,
			coord.AvailableCopies(t.TitleID), coord.TotalCopies(t.TitleID))
	}
}

func printCopies(copies []library.Copy) {
	if len(copies) == 0 {
		fmt.Println("No copies found.")
		return
	}
	fmt.Printf("%-12s %4s %-12s %-10s %-10s %s\n", "Copy", "#", "Borrower", "Borrowed", "Due", "Status")
	for _, cp := range copies {
		status := "available"
		if !cp.Available() {
			status = "on loan"
		}
		fmt.Printf("%-12s %4d %-12s %-10s %-10s %s\n",
			cp.CopyID, cp.CopyNumber, cp.BorrowedBy, cp.BorrowDate, cp.DueDate, status)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
