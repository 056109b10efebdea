package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/config"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/model"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/store"
)

// demoContacts are entered by --seed. Contacts whose email or phone number is already present are
// skipped, so seeding twice is harmless.
var demoContacts = []model.ContactForm{
	{FirstName: "Dirk", LastName: "Krummacker", PhoneNumber: "+420 123 456 789", Email: "dirk@example.com"},
	{FirstName: "Pavla", LastName: "Krummackerova", PhoneNumber: "+420 023 454 244", Email: "pavla@example.com"},
	{FirstName: "Adam", LastName: "Krummacker", PhoneNumber: "+420 333 555 777", Email: "adam@example.com"},
	{FirstName: "David", LastName: "Krummacker", PhoneNumber: "+420 333 555 778", Email: "david@example.com"},
	{FirstName: "Erika", LastName: "Mustermann", PhoneNumber: "+49 0815 4711", Email: "erika@example.com"},
	{FirstName: "Rudi", LastName: "Völler", PhoneNumber: "+49 1234567890", Email: "rudi@example.com"},
}

// Usage example on the command line:
// > CONTACTS_DATABASE_URL=contacts.db go run main.go --seed
// > CONTACTS_DBDRIVER=mysql DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go --file=database.sql
func main() {
	var file string
	var seed bool
	cmd := &cobra.Command{
		Use:   "migration",
		Short: "Create the contacts table and optionally load data",
		Long: `migration creates the contacts table of the configured database if it does not exist.
With --file it then executes the statements of an SQL script, with --seed it adds a few
demo contacts.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), file, seed)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "an sql file to execute after creating the schema")
	cmd.Flags().BoolVar(&seed, "seed", false, "add demo contacts")
	cobra.CheckErr(cmd.ExecuteContext(context.Background()))
}

func migrate(ctx context.Context, file string, seed bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := store.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		return err
	}
	if file != "" {
		readFile, err := os.Open(file) // nosemgrep
		if err != nil {
			return errors.Wrap(err, "open sql file")
		}
		defer readFile.Close()
		if err := store.ExecScript(ctx, db, readFile); err != nil {
			return err
		}
	}
	if !seed {
		return nil
	}

	contacts, err := store.New(db)
	if err != nil {
		return err
	}
	defer contacts.Close()
	for _, form := range demoContacts {
		created, err := contacts.Create(ctx, form)
		if errors.Is(err, store.ErrConstraintViolation) {
			fmt.Printf("skipped %s %s: already present\n", form.FirstName, form.LastName)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Printf("created %s with id %d\n", created.FullName(), created.Id)
	}
	return nil
}
