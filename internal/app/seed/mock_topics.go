package seed

// mockTopics backs topic seeding when no completion provider is configured.
// Keys are language slugs.
var mockTopics = map[string][]topicData{
	"python": {
		{Name: "Variables and Data Types", Description: "Store and manipulate data using Python's built-in types."},
		{Name: "Control Flow", Description: "Direct program execution with if statements and boolean logic."},
		{Name: "Loops", Description: "Repeat work with for and while loops."},
		{Name: "Functions", Description: "Bundle reusable logic into functions with parameters and return values."},
		{Name: "Lists and Tuples", Description: "Work with ordered collections of values."},
		{Name: "Dictionaries", Description: "Map keys to values for fast lookups."},
		{Name: "String Manipulation", Description: "Slice, format and transform text."},
		{Name: "List Comprehensions", Description: "Build lists concisely from other iterables."},
		{Name: "File Handling", Description: "Read from and write to files safely."},
		{Name: "Exception Handling", Description: "Catch and recover from runtime errors with try and except."},
		{Name: "Classes and Objects", Description: "Model data and behavior with object-oriented programming."},
		{Name: "Generators", Description: "Produce values lazily with generator functions and expressions."},
	},
	"java": {
		{Name: "Variables and Primitives", Description: "Declare typed variables using Java's primitive types."},
		{Name: "Control Statements", Description: "Branch execution with if, else and switch."},
		{Name: "Loops", Description: "Iterate with for, while and enhanced for loops."},
		{Name: "Methods", Description: "Define reusable behavior with methods and overloading."},
		{Name: "Arrays", Description: "Store fixed-size sequences of elements."},
		{Name: "Strings", Description: "Work with immutable text and the StringBuilder class."},
		{Name: "Classes and Objects", Description: "Encapsulate state and behavior in classes."},
		{Name: "Inheritance", Description: "Extend classes and override behavior."},
		{Name: "Interfaces", Description: "Define contracts that classes implement."},
		{Name: "Collections Framework", Description: "Use lists, sets and maps from java.util."},
		{Name: "Exception Handling", Description: "Handle checked and unchecked exceptions."},
		{Name: "Streams", Description: "Process collections declaratively with the Stream API."},
	},
	"javascript": {
		{Name: "Variables and Scope", Description: "Declare variables with let and const and understand scoping."},
		{Name: "Data Types", Description: "Work with primitives, objects and type coercion."},
		{Name: "Functions", Description: "Define functions, arrow functions and default parameters."},
		{Name: "Arrays", Description: "Transform collections with map, filter and reduce."},
		{Name: "Objects", Description: "Model data with object literals and destructuring."},
		{Name: "Control Flow", Description: "Branch and loop with JavaScript's control statements."},
		{Name: "Closures", Description: "Capture surrounding state inside functions."},
		{Name: "Promises", Description: "Coordinate asynchronous work with promises."},
		{Name: "Async and Await", Description: "Write asynchronous code that reads sequentially."},
		{Name: "DOM Manipulation", Description: "Query and update page elements from scripts."},
		{Name: "Event Handling", Description: "React to user interaction with event listeners."},
		{Name: "Modules", Description: "Split code across files with import and export."},
	},
	"cpp": {
		{Name: "Variables and Types", Description: "Declare strongly typed variables and constants."},
		{Name: "Control Flow", Description: "Branch execution with if, else and switch."},
		{Name: "Loops", Description: "Repeat work with for, while and range-based loops."},
		{Name: "Functions", Description: "Define functions with overloading and default arguments."},
		{Name: "Pointers and References", Description: "Work directly with memory addresses and aliases."},
		{Name: "Arrays and Vectors", Description: "Store sequences in raw arrays and std::vector."},
		{Name: "Strings", Description: "Manipulate text with std::string."},
		{Name: "Classes", Description: "Encapsulate data and behavior with constructors and destructors."},
		{Name: "Inheritance and Polymorphism", Description: "Extend classes and dispatch through virtual functions."},
		{Name: "Templates", Description: "Write generic code with function and class templates."},
		{Name: "STL Containers", Description: "Use maps, sets and queues from the standard library."},
		{Name: "Memory Management", Description: "Manage lifetimes with new, delete and smart pointers."},
	},
}
