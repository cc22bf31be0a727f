// Package toast provides feedback notifications for tether applications.
//
// Toasts ride the existing script message: each one dispatches a
// CustomEvent on window, and the page decides how to show it.
//
// # Client-Side Handler
//
// The handler is user-defined, so any toast UI can be used:
//
//	window.addEventListener("tether:toast", (e) => {
//	    const { level, message, title } = e.detail;
//	    showToast(level, title, message);
//	});
//
// # Server-Side Usage
//
// From a node handler, with the session captured by the root factory:
//
//	del.Handle("click", func(vdom.Args) error {
//	    if err := store.Delete(id); err != nil {
//	        toast.Error(s, "Failed to delete project")
//	        return err
//	    }
//	    toast.Success(s, "Project deleted")
//	    return nil
//	})
package toast
