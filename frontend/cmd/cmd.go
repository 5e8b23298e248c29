package cmd

import (
	"fmt"
	"strconv"
	"strings"

	ishell "github.com/abiosoft/ishell"
	"github.com/common-nighthawk/go-figure"
	"github.com/jghoshh/arise/backend/models"
	"github.com/jghoshh/arise/frontend/client"
	"github.com/jghoshh/arise/lib/utils"
)

// guestCommands contains commands that are available to users who have not signed in.
var guestCommands []Command

// userCommands contains commands that are available only to signed in users.
var userCommands []Command

// commonCommands contains commands available to all users regardless of their sign-in status.
var commonCommands []Command

// loggedIn indicates whether a user is currently signed in.
var loggedIn bool

// shell is the interactive shell instance of this application.
var shell *ishell.Shell

// Command defines a user command in the shell. Each command has a Name, a
// Desc, and the Func executed when the command is invoked.
type Command struct {
	Name string
	Desc string
	Func func(c *ishell.Context)
}

// progressBar renders a fixed-width bar for a task's progress.
func progressBar(current, goal float64) string {
	const width = 20
	if goal <= 0 {
		goal = 1
	}
	ratio := current / goal
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// printQuests renders the quest board.
func printQuests(c *ishell.Context, quests []models.Quest) {
	for _, q := range quests {
		status := ""
		if q.IsCompleted {
			status = " [COMPLETED]"
		}
		c.Printf("%s (%s)%s\n", q.Title, q.ID, status)
		for _, task := range q.Tasks {
			unit := task.Unit
			if unit != "" {
				unit = " " + unit
			}
			c.Printf("  %-12s %s %.0f/%.0f%s\n", task.ID, progressBar(task.Current, task.Goal), task.Current, task.Goal, unit)
		}
		c.Println()
	}
}

// enterUserMode swaps the guest commands for the signed-in command set.
func enterUserMode() {
	loggedIn = true
	for _, command := range guestCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, userCommands)
}

// enterGuestMode swaps the signed-in commands for the guest command set.
func enterGuestMode() {
	loggedIn = false
	for _, command := range userCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, guestCommands)
}

// InitCmd initializes the shell and sets up the commands for the guest and
// signed-in scenarios.
func InitCmd() {

	// Initialize shell
	shell = ishell.New()

	// Commands available to a guest user (not signed in)
	guestCommands = []Command{
		{
			Name: "signin",
			Desc: "Sign in to your account",
			Func: func(c *ishell.Context) {
				var email, password string
				for {
					c.Print("Enter Email: ")
					email = c.ReadLine()

					if utils.ValidateEmail(email) {
						break
					}
					c.Println("Email is not valid.")
				}

				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()

					if len(password) > 0 {
						break
					}
					c.Println("Password cannot be empty.")
				}

				if err := client.SignIn(email, password); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Welcome back, hunter. You are now signed in.")
				enterUserMode()
			},
		},
		{
			Name: "signup",
			Desc: "Sign up for a new account",
			Func: func(c *ishell.Context) {
				var name, email, password string
				for {
					c.Print("Enter Name: ")
					name = c.ReadLine()

					if len(name) > 1 {
						break
					}
					c.Println("Name must be longer than 1 character.")
				}

				for {
					c.Print("Enter Email: ")
					email = c.ReadLine()

					if utils.ValidateEmail(email) {
						break
					}
					c.Println("Email is not valid.")
				}

				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()

					if utils.ValidatePassword(password) {
						c.Print("Confirm Password: ")
						confirmPassword := c.ReadPassword()

						if password == confirmPassword {
							break
						}
						c.Println()
						c.Println("Passwords do not match. Please try again.")
						c.Println()
					} else {
						c.Println()
						c.Println("Password must be at least 8 characters and contain both letters and numbers.")
						c.Println()
					}
				}

				if err := client.SignUp(email, name, password); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Account created. Your daily quest awaits; type 'quests' to see it.")
				enterUserMode()
			},
		},
	}

	// Commands available only once signed in
	userCommands = []Command{
		{
			Name: "stats",
			Desc: "Show your character sheet",
			Func: func(c *ishell.Context) {
				stats, err := client.GetStats()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}

				c.Printf("LEVEL %d    EXP %d/%d    ABILITY POINTS %d\n", stats.Level, stats.Exp, stats.ExpToNextLevel, stats.AbilityPoints)
				c.Printf("HP %d    MP %d    FATIGUE %d\n", stats.HP, stats.MP, stats.Fatigue)
				c.Printf("STR %d  VIT %d  AGI %d  INT %d  PER %d\n", stats.Str, stats.Vit, stats.Agi, stats.Int, stats.Per)
			},
		},
		{
			Name: "quests",
			Desc: "Show your quest board",
			Func: func(c *ishell.Context) {
				quests, err := client.GetQuests()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				printQuests(c, quests)
			},
		},
		{
			Name: "train",
			Desc: "Log progress on a task: train <taskId> [amount]",
			Func: func(c *ishell.Context) {
				if len(c.Args) < 1 {
					c.Println("Usage: train <taskId> [amount]")
					return
				}
				taskID := c.Args[0]

				amount := 1.0
				if len(c.Args) > 1 {
					parsed, err := strconv.ParseFloat(c.Args[1], 64)
					if err != nil || parsed <= 0 {
						c.Println("Amount must be a positive number.")
						return
					}
					amount = parsed
				}

				quests, err := client.GetQuests()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}

				// Find the task on the quest board and clamp the new progress
				// to the goal, the same way the original dashboard did.
				for _, q := range quests {
					for _, task := range q.Tasks {
						if task.ID != taskID {
							continue
						}

						progress := task.Current + amount
						if progress > task.Goal {
							progress = task.Goal
						}

						if err := client.CompleteTask(q.ID, taskID, progress); err != nil {
							utils.PrintError(err.Error())
							return
						}

						c.Printf("%s: %.0f/%.0f\n", task.Name, progress, task.Goal)
						if progress >= task.Goal {
							c.Println("Task complete.")
						}
						return
					}
				}

				c.Printf("No task %q on your quest board.\n", taskID)
			},
		},
		{
			Name: "rename-quest",
			Desc: "Rename a quest: rename-quest <questId> <new title>",
			Func: func(c *ishell.Context) {
				if len(c.Args) < 2 {
					c.Println("Usage: rename-quest <questId> <new title>")
					return
				}
				questID := c.Args[0]
				title := strings.ToUpper(strings.Join(c.Args[1:], " "))

				quests, err := client.GetQuests()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}

				found := false
				for i := range quests {
					if quests[i].ID == questID {
						quests[i].Title = title
						found = true
					}
				}
				if !found {
					c.Printf("No quest %q on your quest board.\n", questID)
					return
				}

				if err := client.UpdateQuests(quests); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Quest renamed.")
			},
		},
		{
			Name: "signout",
			Desc: "Sign out of your account",
			Func: func(c *ishell.Context) {
				if err := client.SignOut(); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("You are now signed out.")
				enterGuestMode()
			},
		},
	}

	// The help command is created separately to avoid the cyclic dependency
	commonCommands = append(commonCommands, Command{
		Name: "help",
		Desc: "List available commands",
		Func: func(c *ishell.Context) {
			c.Println("Available commands:")
			if loggedIn {
				for _, command := range userCommands {
					c.Println("  |-- '" + command.Name + "' : " + command.Desc)
				}
			} else {
				for _, command := range guestCommands {
					c.Println("  |-- '" + command.Name + "' : " + command.Desc)
				}
			}
			for _, command := range commonCommands {
				c.Println("  |-- '" + command.Name + "' : " + command.Desc)
			}
			c.Println()
		},
	})
}

// addCommands adds the given commands to the shell.
func addCommands(shell *ishell.Shell, commands []Command) {
	for _, command := range commands {
		shell.AddCmd(&ishell.Cmd{
			Name: command.Name,
			Help: command.Desc,
			Func: command.Func,
		})
	}
}

// Execute welcomes the user, adds the command set matching the current
// session state, and runs the shell.
func Execute() {
	shell.Println()
	figure.NewFigure("Arise", "basic", true).Print()
	shell.Println("Welcome to Arise -- level up through your daily training. Type 'help' to see a list of commands.")

	addCommands(shell, commonCommands)

	token, err := client.IsUserAuthenticated()
	if err == nil && token != "" {
		loggedIn = true
		addCommands(shell, userCommands)
		fmt.Println("You are signed in from a previous session.")
	} else {
		addCommands(shell, guestCommands)
	}

	shell.Run()
}
